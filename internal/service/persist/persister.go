package persist

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/entityfs/internal/domain/entity"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
	"github.com/GriffinCanCode/entityfs/internal/shared/paths"
)

const (
	// DefaultFlushThreshold is the number of unsynced bytes that forces a flush.
	DefaultFlushThreshold int64 = 32 << 20
	// bufferSize of the destination writer.
	bufferSize = 256 << 10
	// openAttempts bounds retries when another writer claims the chosen name first.
	openAttempts = 3
	// filePerm for created destinations.
	filePerm = 0o644
)

// Persister copies file content to durable storage in bounded memory.
type Persister struct {
	// Fs receives the destination files. Required.
	Fs afero.Fs
	// ChunkSize is the read granularity; it bounds the bytes written after a rejection.
	ChunkSize int
	// FlushThreshold is the number of bytes written since the last sync that forces a
	// flush and sync.
	FlushThreshold int64
	// Limiter caps throughput in bytes per second when set.
	Limiter *rate.Limiter

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// New returns a Persister writing to fsys with default sizes.
func New(fsys afero.Fs) *Persister {
	return &Persister{Fs: fsys}
}

// Result describes a finished persist.
type Result struct {
	// OK is set when the destination holds the complete content.
	OK bool
	// Path is the collision-free destination that was used.
	Path string
	// Written is the number of bytes copied before finishing or stopping.
	Written int64
	// Flushes counts intermediate flush and sync calls.
	Flushes int
	// Digest is the hex BLAKE2b-256 of the written bytes. Empty unless OK.
	Digest string
	// Reason explains a negative outcome, errs.ErrPersistVerificationFailed for a
	// rejected signal.
	Reason error
}

func (p *Persister) chunkSize() int {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return entity.DefaultChunkSize
}

func (p *Persister) flushThreshold() int64 {
	if p.FlushThreshold > 0 {
		return p.FlushThreshold
	}
	return DefaultFlushThreshold
}

// Persist copies file to dest, or to a numbered variant of dest when that name is taken.
// A missing extension is appended from the file's content type.
//
// The signal is polled before every chunk; once it resolves false no further chunk is
// read. After copying, Persist waits for the signal. A false outcome removes the
// destination and returns a Result with Reason set and a nil error. Any I/O error or
// cancellation of ctx also removes the destination and is returned. A nil sig counts as
// already verified.
func (p *Persister) Persist(ctx context.Context, file *entity.File, dest string, sig *Signal) (Result, error) {
	start := time.Now()
	if sig == nil {
		sig = Resolved(true)
	}

	res, err := p.persist(ctx, file, dest, sig)

	outcome := monitoring.OutcomeOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = monitoring.OutcomeCanceled
	case err != nil:
		outcome = monitoring.OutcomeError
	case !res.OK:
		outcome = monitoring.OutcomeRejected
	}
	p.Metrics.RecordPersist(outcome, res.Written, time.Since(start))

	log := logging.OrNop(p.Logger)
	fields := []zap.Field{
		zap.String("source", file.Path()),
		zap.String("dest", res.Path),
		zap.Int64("bytes", res.Written),
		zap.Int("flushes", res.Flushes),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case monitoring.OutcomeOK:
		log.Debug("persisted file", fields...)
	case monitoring.OutcomeRejected:
		log.Info("persist rejected, destination removed", fields...)
	default:
		log.Warn("persist failed, destination removed", append(fields, zap.Error(err))...)
	}
	return res, err
}

func (p *Persister) persist(ctx context.Context, file *entity.File, dest string, sig *Signal) (Result, error) {
	if p.Fs == nil {
		return Result{}, errors.New("persister has no filesystem")
	}
	if file == nil {
		return Result{}, errors.New("persist: file is nil")
	}

	f, target, err := p.create(dest, file.ContentType())
	if err != nil {
		return Result{}, err
	}

	d := &destination{fs: p.Fs, file: f, path: target}
	res := Result{Path: target}

	copied, err := p.copy(ctx, file, d, sig)
	res.Written, res.Flushes = copied.written, copied.flushes
	if err == nil {
		err = d.finish()
	}
	if err != nil {
		d.discard()
		return res, err
	}

	verified, err := sig.Wait(ctx)
	if err != nil {
		d.discard()
		return res, err
	}
	if !verified {
		d.discard()
		res.Reason = errs.ErrPersistVerificationFailed
		return res, nil
	}

	res.OK = true
	res.Digest = hex.EncodeToString(copied.hash.Sum(nil))
	return res, nil
}

// create opens a fresh destination with O_EXCL, retrying with the next free name when the name is claimed
// between the existence check and the open.
func (p *Persister) create(dest, contentType string) (afero.File, string, error) {
	dir, err := paths.Dirname(dest)
	if err != nil {
		return nil, "", err
	}
	base, err := paths.Basename(dest)
	if err != nil {
		return nil, "", err
	}

	for attempt := 0; ; attempt++ {
		name, err := paths.UniqueFilename(p.Fs, dir, base, contentType)
		if err != nil {
			return nil, "", err
		}
		target := name
		if dir != "." {
			target = paths.Join(dir, name)
		}

		f, err := p.Fs.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
		switch {
		case err == nil:
			return f, target, nil
		case os.IsExist(err) && attempt+1 < openAttempts:
			continue
		default:
			return nil, "", fmt.Errorf("create %s: %w", target, err)
		}
	}
}

type copyStats struct {
	written int64
	flushes int
	hash    hash.Hash
}

func (p *Persister) copy(ctx context.Context, file *entity.File, d *destination, sig *Signal) (copyStats, error) {
	h, _ := blake2b.New256(nil)
	stats := copyStats{hash: h}
	w := bufio.NewWriterSize(d.file, bufferSize)
	d.writer = w

	threshold := p.flushThreshold()
	var unflushed int64

	for chunk, err := range file.Chunks(ctx, entity.Whole, p.chunkSize()) {
		if err != nil {
			return stats, err
		}
		if v, resolved := sig.Peek(); resolved && !v {
			return stats, nil
		}
		if err := p.wait(ctx, len(chunk)); err != nil {
			return stats, err
		}

		if _, err := w.Write(chunk); err != nil {
			return stats, fmt.Errorf("write %s: %w", d.path, err)
		}
		stats.hash.Write(chunk)
		stats.written += int64(len(chunk))
		unflushed += int64(len(chunk))

		if unflushed > threshold {
			if err := d.sync(); err != nil {
				return stats, err
			}
			stats.flushes++
			p.Metrics.IncFlushes()
			unflushed = 0
		}
	}
	return stats, nil
}

// wait blocks until the limiter admits n bytes, in bursts the limiter can grant.
func (p *Persister) wait(ctx context.Context, n int) error {
	if p.Limiter == nil || p.Limiter.Limit() == rate.Inf {
		return nil
	}
	burst := p.Limiter.Burst()
	if burst <= 0 {
		return errors.New("rate limiter has zero burst")
	}
	for n > 0 {
		step := min(n, burst)
		if err := p.Limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// destination owns the single handle on a file being written.
type destination struct {
	fs     afero.Fs
	file   afero.File
	writer *bufio.Writer
	path   string
	closed bool
}

func (d *destination) sync() error {
	if d.writer != nil {
		if err := d.writer.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", d.path, err)
		}
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", d.path, err)
	}
	return nil
}

// finish flushes, syncs and closes the handle.
func (d *destination) finish() error {
	if err := d.sync(); err != nil {
		return err
	}
	d.closed = true
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", d.path, err)
	}
	return nil
}

// discard closes the handle if needed and removes the file.
func (d *destination) discard() {
	if !d.closed {
		d.closed = true
		_ = d.file.Close()
	}
	_ = d.fs.Remove(d.path)
}
