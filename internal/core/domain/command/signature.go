package command

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultExtension is used for Telegram photos, which are always JPEG and carry no file name.
const defaultExtension = ".jpg"

type Signature struct {
	formatter      port.SignatureFormatter
	store          port.FileStore
	textSender     port.TextSender
	documentSender port.DocumentSender
	command        string
}

func NewSignature(formatter port.SignatureFormatter, store port.FileStore, textSender port.TextSender,
	documentSender port.DocumentSender, command string) *Signature {
	return &Signature{formatter: formatter, store: store, textSender: textSender, documentSender: documentSender,
		command: command}
}

func (s *Signature) GetCommand() string {
	return s.command
}

func (s *Signature) Respond(ctx context.Context, timeout time.Duration, message *domain.Message) error {
	l := log.With().
		Int("messageId", message.ID).
		Int64("chatId", message.ChatID).
		Str("command", s.GetCommand()).
		Logger()

	l.Info().Msg("handling request")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go s.textSender.SendChatAction(ctx, message.ChatID, domain.SendingDocument)

	if message.ImageURL == "" {
		_ = s.textSender.NotifyAndReturnError(ctx, domain.ErrMissingImage, message)
		return nil
	}

	upload, err := s.store.Download(ctx, message.ImageURL)
	if err != nil {
		return s.textSender.NotifyAndReturnError(ctx, fmt.Errorf("failed to download image: %w", err), message)
	}

	err = s.formatter.Process(ctx, bytes.NewReader(upload), extension(message.ImageName),
		func(ctx context.Context, result domain.Attempt) error {
			formatted, err := s.store.Read(result.Path)
			if err != nil {
				return err
			}

			return s.documentSender.SendDocumentReply(ctx, message, domain.OutputFilename, formatted)
		})
	if err != nil {
		return s.textSender.NotifyAndReturnError(ctx, fmt.Errorf("failed to format signature: %w", err), message)
	}

	return nil
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultExtension
	}

	return ext
}
