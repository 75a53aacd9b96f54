package domain

import "errors"

var (
	ErrDecode           = errors.New("decode image")
	ErrCodec            = errors.New("encode image")
	ErrIO               = errors.New("image file io")
	ErrDeletion         = errors.New("delete file")
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrInvalidRetention = errors.New("invalid retention policy")
	ErrSendingReply     = errors.New("failed to send reply")
	ErrUnknownCommand   = errors.New("command not found")
	ErrMissingImage     = errors.New("missing image")
)
