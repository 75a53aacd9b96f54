package port

import (
	"context"
	"io"
	"sigfmt/internal/core/domain"
)

// Deliver hands the accepted attempt to the transport. The attempt's file is valid until Deliver returns.
type Deliver func(ctx context.Context, result domain.Attempt) error

type SignatureFormatter interface {
	// Process formats an uploaded image and passes the result to deliver. The request's files are released for
	// cleanup once deliver returned or the request failed.
	Process(ctx context.Context, upload io.Reader, extension string, deliver Deliver) error
}

type CleanupStatus interface {
	// Pending returns the number of deferred cleanups that have not finished yet.
	Pending() int64
}
