// Package server wires the entityfs HTTP service together.
//
// It builds the logger from configuration, registers Prometheus collectors on a
// private registry, prepares the storage root and the streaming persister, and mounts
// the API handlers behind recovery, tracing, metrics, CORS and rate limiting middleware.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, afero.NewOsFs())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
