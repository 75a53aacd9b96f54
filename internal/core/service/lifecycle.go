package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/metrics"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	triggerDeferred = "deferred"
	triggerSweep    = "sweep"
)

// Lifecycle deletes request files after a grace period and sweeps managed
// directories for files past the maximum age. Deletion is best effort: errors
// are logged and counted, never returned to a request.
type Lifecycle struct {
	ctx     context.Context
	policy  domain.RetentionPolicy
	dirs    []string
	metrics *metrics.LifecycleMetrics

	removeFile func(string) error
	now        func() time.Time

	pending atomic.Int64
	wg      sync.WaitGroup
}

// NewLifecycle creates a manager whose deferred deletions stop retrying once
// ctx is done.
func NewLifecycle(ctx context.Context, policy domain.RetentionPolicy, dirs []string,
	m *metrics.LifecycleMetrics) (*Lifecycle, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Lifecycle{
		ctx:        ctx,
		policy:     policy,
		dirs:       dirs,
		metrics:    m,
		removeFile: os.Remove,
		now:        time.Now,
	}, nil
}

// Release schedules deletion of records after the grace period and returns
// immediately.
func (l *Lifecycle) Release(records []domain.FileRecord) {
	if len(records) == 0 {
		return
	}

	l.wg.Add(1)
	l.metrics.Pending.Set(float64(l.pending.Add(1)))

	log.Debug().Int("files", len(records)).Dur("grace", l.policy.GracePeriod).Msg("scheduled cleanup")

	time.AfterFunc(l.policy.GracePeriod, func() {
		defer l.wg.Done()
		defer func() { l.metrics.Pending.Set(float64(l.pending.Add(-1))) }()

		for _, r := range records {
			if removed, err := l.deleteFile(l.ctx, r.Path); err == nil && removed {
				l.metrics.RecordDeleted(triggerDeferred)
			}
		}
	})
}

func (l *Lifecycle) Pending() int64 {
	return l.pending.Load()
}

// Wait blocks until every scheduled cleanup has finished.
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}

// Delete removes path, retrying transient failures up to MaxRetries times
// with RetryDelay between attempts. A path that does not exist is not an
// error. The returned error wraps domain.ErrDeletion and is only meant for
// logging and counting.
func (l *Lifecycle) Delete(ctx context.Context, path string) error {
	_, err := l.deleteFile(ctx, path)
	return err
}

// deleteFile is Delete that also reports whether this call removed the file, as
// opposed to finding it already gone.
func (l *Lifecycle) deleteFile(ctx context.Context, path string) (bool, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.policy.RetryDelay), l.policy.MaxRetries), ctx)

	attempts := 0
	var permanent, gone bool
	err := backoff.Retry(func() error {
		attempts++

		err := l.removeFile(path)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			gone = true
			return nil
		case isTransient(err):
			log.Debug().Str("path", path).Int("attempt", attempts).Err(err).Msg("file busy, retrying delete")
			return err
		default:
			permanent = true
			return backoff.Permanent(err)
		}
	}, b)
	if err == nil {
		if gone {
			log.Debug().Str("path", path).Msg("file already gone")
			return false, nil
		}
		log.Debug().Str("path", path).Msg("deleted file")
		return true, nil
	}

	if permanent {
		log.Error().Str("path", path).Err(err).Msg("could not delete file")
		l.metrics.RecordFailure("permanent")
		return false, fmt.Errorf("%w: %w", domain.ErrDeletion, err)
	}

	log.Error().Str("path", path).Int("attempts", attempts).Err(err).Msg("failed to delete file after retries")
	l.metrics.RecordFailure("exhausted")

	return false, fmt.Errorf("%w: %d attempts: %w", domain.ErrDeletion, attempts, err)
}

// isTransient reports whether a removal may succeed later, i.e. the file is
// locked or access is temporarily denied.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, fs.ErrPermission)
}

// Sweep deletes every regular file in the managed directories whose
// modification time is older than MaxAge.
func (l *Lifecycle) Sweep(ctx context.Context) domain.SweepReport {
	var report domain.SweepReport
	now := l.now()

	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Error().Str("dir", dir).Err(err).Msg("could not read directory")
			continue
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return report
			}

			if !entry.Type().IsRegular() {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				// removed since ReadDir, e.g. by a deferred cleanup
				if !errors.Is(err, fs.ErrNotExist) {
					log.Error().Str("path", path).Err(err).Msg("could not stat file")
				}
				continue
			}

			report.Scanned++
			if now.Sub(info.ModTime()) <= l.policy.MaxAge {
				continue
			}

			report.Expired++
			removed, err := l.deleteFile(ctx, path)
			if err != nil {
				report.Failed++
				continue
			}
			if !removed {
				continue
			}

			report.Deleted++
			l.metrics.RecordDeleted(triggerSweep)
		}
	}

	l.metrics.RecordSweep(report.Expired)
	log.Info().Int("scanned", report.Scanned).Int("expired", report.Expired).Int("deleted", report.Deleted).
		Int("failed", report.Failed).Msg("sweep finished")

	return report
}

// Run sweeps immediately and then on every SweepInterval until ctx is done.
func (l *Lifecycle) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.policy.SweepInterval)
	defer ticker.Stop()

	l.Sweep(ctx)

	for {
		log.Debug().Dur("interval", l.policy.SweepInterval).Msg("waiting for next sweep")
		select {
		case <-ticker.C:
			l.Sweep(ctx)
		case <-ctx.Done():
			log.Debug().Msg("stopping sweep loop")
			return nil
		}
	}
}
