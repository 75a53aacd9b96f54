package port

import (
	"context"
	"sigfmt/internal/core/domain"
)

type TextSender interface {
	// SendMessageReply sends a reply to a specified message with the given text and returns the sent message ID and
	// an error if any.
	SendMessageReply(ctx context.Context, message *domain.Message, text string) (int, error)
	// SendChatAction sends a specified chat action (e.g., typing, sending a document) to indicate activity in a
	// given chat.
	SendChatAction(ctx context.Context, chatID int64, action domain.Action)
	// NotifyAndReturnError sends an error notification based on the provided message context and returns the error.
	NotifyAndReturnError(ctx context.Context, err error, message *domain.Message) error
}

type DocumentSender interface {
	// SendDocumentReply sends a file uncompressed as a document in response to the provided message.
	SendDocumentReply(ctx context.Context, message *domain.Message, filename string, file []byte) error
}
