package sender

import (
	"bytes"
	"context"
	"fmt"
	"sigfmt/internal/core/domain"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// TelegramBot is the subset of *bot.Bot the sender uses.
type TelegramBot interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

type Telegram struct {
	bot TelegramBot
}

func NewTelegram(bot TelegramBot) *Telegram {
	return &Telegram{bot: bot}
}

const TelegramMessageLimit = 4096

// SendMessageReply replies to message, splitting text into chunks Telegram accepts. The returned ID is the one of the
// last chunk sent.
func (s *Telegram) SendMessageReply(ctx context.Context, message *domain.Message, text string) (int, error) {
	var id int

	for _, chunk := range chunkText(text, TelegramMessageLimit) {
		sent, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.ChatID,
			Text:   chunk,
			ReplyParameters: &models.ReplyParameters{
				MessageID: message.ID,
				ChatID:    message.ChatID,
			},
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrSendingReply, err)
		}

		id = sent.ID
	}

	return id, nil
}

// SendDocumentReply uploads file as a document so Telegram does not recompress it.
func (s *Telegram) SendDocumentReply(ctx context.Context, message *domain.Message, filename string,
	file []byte) error {
	_, err := s.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   message.ChatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(file)},
		ReplyParameters: &models.ReplyParameters{
			MessageID: message.ID,
			ChatID:    message.ChatID,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to send document response")
		return fmt.Errorf("%w: %w", domain.ErrSendingReply, err)
	}

	return nil
}

func (s *Telegram) NotifyAndReturnError(ctx context.Context, err error, message *domain.Message) error {
	log.Error().Err(err).Int("messageId", message.ID).Int64("chatId", message.ChatID).Msg("request failed")

	if _, sendErr := s.SendMessageReply(ctx, message, "Error: "+err.Error()); sendErr != nil {
		return sendErr
	}

	return err
}

const ChatActionRepeatSeconds = 5

// SendChatAction keeps the action indicator visible until ctx is done.
func (s *Telegram) SendChatAction(ctx context.Context, chatID int64, action domain.Action) {
	log.Debug().Int64("chatID", chatID).Msg("starting action routine")

	ticker := time.NewTicker(ChatActionRepeatSeconds * time.Second)
	defer ticker.Stop()

	for {
		log.Debug().Int64("chatID", chatID).Msg("transmitting action")
		_, err := s.bot.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatAction(action),
		})
		if err != nil {
			log.Err(err).Msg("error sending chat action")
			return
		}

		select {
		case <-ctx.Done():
			log.Debug().Int64("chatID", chatID).Msg("done, stopping action routine")
			return
		case <-ticker.C:
		}
	}
}

func chunkText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}

	return chunks
}
