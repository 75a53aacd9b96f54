package handler

import (
	"context"
	"fmt"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/domain/command"
	"sigfmt/internal/core/port"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// FileLinker resolves Telegram file IDs to download URLs. *bot.Bot implements it.
type FileLinker interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

type Command struct {
	commandRegistry port.CommandRegistry
	timeout         time.Duration
}

func NewCommand(commandRegistry port.CommandRegistry, timeout time.Duration) *Command {
	return &Command{commandRegistry: commandRegistry, timeout: timeout}
}

// Match accepts messages whose text or caption starts a command, including
// image documents that only carry a caption.
func (c *Command) Match(update *models.Update) bool {
	if update.Message == nil {
		return false
	}

	return strings.HasPrefix(messageText(update.Message), "/")
}

func (c *Command) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	msg := update.Message
	text := messageText(msg)

	log.Debug().Str("message", text).Msg("received command")

	cmd := command.ParseCommand(text)
	commandHandler, err := c.commandRegistry.Get(cmd)
	if err != nil {
		log.Debug().Str("command", cmd).Msg("no handler for command")
		return
	}

	message := &domain.Message{
		ID:       msg.ID,
		ChatID:   msg.Chat.ID,
		Text:     text,
		Username: getUserNameFromMessage(msg.From),
	}

	go func() {
		// The update context ends with the handler call; the command owns its own timeout.
		ctx := context.WithoutCancel(ctx)

		if fileID, name := findImage(msg); fileID != "" && b != nil {
			url, err := resolveFileURL(ctx, b, fileID)
			if err != nil {
				log.Err(err).Str("command", cmd).Msg("failed to resolve image")
			}
			message.ImageURL = url
			message.ImageName = name
		}

		if err := commandHandler.Respond(ctx, c.timeout, message); err != nil {
			log.Err(err).Str("command", cmd).Msg("failed to respond to command")
		}
	}()
}

func messageText(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}

	return msg.Caption
}

// findImage returns the file to process: an image document on the message,
// the largest photo on it, or the same from the message it replies to.
func findImage(msg *models.Message) (string, string) {
	for _, m := range []*models.Message{msg, msg.ReplyToMessage} {
		if m == nil {
			continue
		}

		if m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/") {
			return m.Document.FileID, m.Document.FileName
		}

		if len(m.Photo) > 0 {
			return findLargestImage(m.Photo), ""
		}
	}

	return "", ""
}

func findLargestImage(photos []models.PhotoSize) string {
	largest := photos[len(photos)-1]
	for _, photo := range photos {
		if photo.Width*photo.Height > largest.Width*largest.Height {
			largest = photo
		}
	}

	return largest.FileID
}

func resolveFileURL(ctx context.Context, files FileLinker, fileID string) (string, error) {
	f, err := files.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("error getting file from telegram api: %w", err)
	}

	return files.FileDownloadLink(f), nil
}

func getUserNameFromMessage(user *models.User) string {
	if user == nil {
		return ""
	}

	if user.Username == "" {
		return user.FirstName
	}

	return "@" + user.Username
}
