package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sigfmt/internal/core/domain"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Magick encodes images by shelling out to ImageMagick.
type Magick struct {
	magickBinary []string
}

func NewMagick() (*Magick, error) {
	m := &Magick{}
	commands := [][]string{{"magick", "-version"}, {"convert", "-version"}}

	for _, command := range commands {
		_, err := exec.Command(command[0], command[1:]...).Output()
		if err != nil {
			log.Debug().Strs("command", command).Msg("binary not found")
			continue
		}

		log.Debug().Strs("command", command).Msg("binary found")
		m.magickBinary = command[:len(command)-1]
		break
	}

	if len(m.magickBinary) == 0 {
		return nil, errors.New("magick binary not available")
	}

	return m, nil
}

func (m *Magick) Resize(ctx context.Context, src, dst string, width, height, quality int) error {
	return m.run(ctx, src,
		"-auto-orient",
		"-resize", fmt.Sprintf("%dx%d!", width, height),
		"-background", "white", "-flatten",
		"-quality", strconv.Itoa(quality),
		dst)
}

func (m *Magick) Contain(ctx context.Context, src, dst string, width, height, quality int) error {
	geometry := fmt.Sprintf("%dx%d", width, height)

	return m.run(ctx, src,
		"-auto-orient",
		"-resize", geometry,
		"-background", "white", "-gravity", "center", "-extent", geometry,
		"-flatten",
		"-quality", strconv.Itoa(quality),
		dst)
}

func (m *Magick) Encode(ctx context.Context, src, dst string, quality int) error {
	return m.run(ctx, src,
		"-background", "white", "-flatten",
		"-quality", strconv.Itoa(quality),
		dst)
}

func (m *Magick) run(ctx context.Context, src string, args ...string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: opening source: %w", domain.ErrIO, err)
	}

	// Reading only the first frame keeps animated or layered sources to one output file.
	args = append(append(append([]string{}, m.magickBinary...), src+"[0]"), args...)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Bytes("magickStderr", out).Msg("magick command failed")
		return fmt.Errorf("%w: %w", domain.ErrCodec, err)
	}

	log.Debug().Msg("magick command finished")

	return nil
}
