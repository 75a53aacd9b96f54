package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sigfmt/internal/adapters/converter"
	"sigfmt/internal/adapters/file"
	"sigfmt/internal/adapters/handler"
	"sigfmt/internal/adapters/httpapi"
	"sigfmt/internal/adapters/sender"
	"sigfmt/internal/config"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/domain/command"
	"sigfmt/internal/core/port"
	"sigfmt/internal/core/service"
	"sigfmt/internal/metrics"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "sigfmt",
		Short:         "Format signature images to a fixed size and byte range",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.toml)")

	root.AddCommand(serveCmd(), formatCmd(), sweepCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("sigfmt failed")
		cancel()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	log.Info().Str("path", configPath).Msg("reading config...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(cfg.LogLevel)

	return cfg, nil
}

// app holds the wired core shared by every subcommand.
type app struct {
	cfg       *config.Config
	store     *file.Store
	lifecycle *service.Lifecycle
	pipeline  *service.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app, error) {
	codec, err := newCodec(cfg.CodecBackend)
	if err != nil {
		return nil, err
	}

	store, err := file.NewStore(cfg.Storage.UploadDir, cfg.Storage.TempDir, cfg.Storage.OutputDir)
	if err != nil {
		return nil, err
	}

	lifecycle, err := service.NewLifecycle(ctx, cfg.Retention, store.Directories(), m.Lifecycle)
	if err != nil {
		return nil, err
	}

	encoder := service.NewEncoder(codec, store, cfg.Envelope, m.Encoder)

	return &app{
		cfg:       cfg,
		store:     store,
		lifecycle: lifecycle,
		pipeline:  service.NewPipeline(encoder, store, lifecycle, m.Encoder),
	}, nil
}

func newCodec(backend string) (port.ImageCodec, error) {
	log.Info().Str("backend", backend).Msg("initializing image codec")

	if backend == config.BackendMagick {
		magick, err := converter.NewMagick()
		if err != nil {
			return nil, fmt.Errorf("failed initializing magick converter: %w", err)
		}

		return magick, nil
	}

	return converter.NewImaging(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP upload endpoint and the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Info().Msg("starting sigfmt...")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !cfg.HTTP.Enabled && !cfg.Telegram.Enabled {
				return fmt.Errorf("nothing to serve: enable http or telegram")
			}

			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, metrics.New())
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return a.lifecycle.Run(ctx)
			})

			if cfg.HTTP.Enabled {
				srv := httpapi.NewServer(a.pipeline, httpapi.Settings{
					Listen:         cfg.HTTP.Listen,
					AllowedOrigin:  cfg.HTTP.AllowedOrigin,
					MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
				}, nil)
				g.Go(func() error {
					return srv.Run(ctx)
				})
			}

			if cfg.Telegram.Enabled {
				b, err := newBot(a, cfg)
				if err != nil {
					return err
				}

				g.Go(func() error {
					log.Info().Msg("bot listening")
					b.Start(ctx)
					return nil
				})
			}

			err = g.Wait()

			log.Info().Int64("pending", a.lifecycle.Pending()).Msg("waiting for scheduled cleanups")
			a.lifecycle.Wait()

			return err
		},
	}
}

func newBot(a *app, cfg *config.Config) (*bot.Bot, error) {
	b, err := bot.New(cfg.Telegram.BotToken, bot.WithDefaultHandler(noOpHandler))
	if err != nil {
		return nil, fmt.Errorf("failed initializing telegram bot: %w", err)
	}

	s := sender.NewTelegram(b)

	registry := &command.Registry{}
	registry.Register(command.NewSignature(a.pipeline, a.store, s, s, "/signature"))
	registry.Register(command.NewStatus(s, a.lifecycle, cfg.Envelope, "/status"))

	commandHandler := handler.NewCommand(registry, cfg.HandlerTimeout)
	b.RegisterHandlerMatchFunc(commandHandler.Match, commandHandler.Handle)

	return b, nil
}

func noOpHandler(_ context.Context, _ *bot.Bot, _ *models.Update) {}

func formatCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "format <image>",
		Short: "Format a single image and write the result to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// The result is copied out before cleanup starts.
			cfg.Retention.GracePeriod = 0

			a, err := newApp(cmd.Context(), cfg, metrics.New())
			if err != nil {
				return err
			}
			defer a.lifecycle.Wait()

			src, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			return a.pipeline.Process(cmd.Context(), src, filepath.Ext(args[0]),
				func(_ context.Context, result domain.Attempt) error {
					if err := copyFile(result.Path, output); err != nil {
						return err
					}

					log.Info().Str("output", output).Int64("bytes", result.ByteSize).Int("quality", result.Quality).
						Float64("scale", result.ScaleFactor).Msg("signature written")

					return nil
				})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", domain.OutputFilename, "output file")

	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete files older than the configured maximum age once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, metrics.New())
			if err != nil {
				return err
			}

			report := a.lifecycle.Sweep(cmd.Context())
			if report.Failed > 0 {
				return fmt.Errorf("%w: %d of %d expired files could not be deleted",
					domain.ErrDeletion, report.Failed, report.Expired)
			}

			return nil
		},
	}
}
