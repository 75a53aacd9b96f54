package command

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"time"

	"github.com/rs/zerolog/log"
)

type Status struct {
	textSender port.TextSender
	cleanup    port.CleanupStatus
	envelope   domain.Envelope
	command    string
}

func NewStatus(sender port.TextSender, cleanup port.CleanupStatus, envelope domain.Envelope, command string) *Status {
	return &Status{textSender: sender, cleanup: cleanup, envelope: envelope, command: command}
}

func (s *Status) GetCommand() string {
	return s.command
}

const kb = 1024
const statusTemplate = `target: %dx%d px, %d-%d KB
pending cleanups: %d
allocated mem: %d KB
threads running: %d
heap: %d KB
stack: %d KB
compiled with %s for %s-%s
`
const metricCount = 3

func (s *Status) Respond(ctx context.Context, _ time.Duration, message *domain.Message) error {
	l := log.With().
		Int("messageId", message.ID).
		Int64("chatId", message.ChatID).
		Str("command", s.GetCommand()).
		Logger()

	l.Info().Msg("handling request")

	data := make([]metrics.Sample, metricCount)
	data[0] = metrics.Sample{Name: "/memory/classes/heap/objects:bytes"}
	data[1] = metrics.Sample{Name: "/memory/classes/heap/stacks:bytes"}
	data[2] = metrics.Sample{Name: "/memory/classes/total:bytes"}

	metrics.Read(data)

	var goos, goarch string
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "GOOS":
				goos = setting.Value
			case "GOARCH":
				goarch = setting.Value
			}
		}
	}

	_, err := s.textSender.SendMessageReply(ctx, message,
		fmt.Sprintf(
			statusTemplate,
			s.envelope.PixelWidth, s.envelope.PixelHeight,
			s.envelope.MinBytes/kb, s.envelope.MaxBytes/kb,
			s.cleanup.Pending(),
			data[2].Value.Uint64()/kb,
			runtime.NumGoroutine(),
			data[0].Value.Uint64()/kb,
			data[1].Value.Uint64()/kb,
			runtime.Version(), goos, goarch,
		))
	if err != nil {
		return err
	}

	return nil
}
