package domain

import (
	"fmt"
	"time"
)

type RetentionPolicy struct {
	// GracePeriod is the delay between a finished request and the first
	// deletion attempt for its files.
	GracePeriod   time.Duration
	SweepInterval time.Duration
	// MaxAge is the modification age after which the sweep reclaims a file.
	MaxAge     time.Duration
	MaxRetries uint64
	RetryDelay time.Duration
}

func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		GracePeriod:   5 * time.Second,
		SweepInterval: 15 * time.Minute,
		MaxAge:        15 * time.Minute,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

func (p RetentionPolicy) Validate() error {
	switch {
	case p.GracePeriod < 0:
		return fmt.Errorf("%w: negative grace period", ErrInvalidRetention)
	case p.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidRetention)
	case p.MaxAge <= 0:
		return fmt.Errorf("%w: max age must be positive", ErrInvalidRetention)
	case p.RetryDelay < 0:
		return fmt.Errorf("%w: negative retry delay", ErrInvalidRetention)
	}

	return nil
}

type SweepReport struct {
	Scanned int
	Expired int
	Deleted int
	Failed  int
}
