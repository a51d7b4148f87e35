package http

import (
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
)

// Service names reported by handler metrics.
const (
	serviceTree    = "tree"
	serviceSearch  = "search"
	serviceArchive = "archive"
	serviceUpload  = "upload"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing an operation; the returned func records it with the final error.
func (hm *HandlerMetrics) Track(service, operation string) func(err error) {
	var m *monitoring.Metrics
	if hm != nil {
		m = hm.metrics
	}
	timer := monitoring.NewTimer(m, service, operation)
	return timer.StopErr
}
