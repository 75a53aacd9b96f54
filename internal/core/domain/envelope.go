package domain

import (
	"fmt"
	"math"
)

const (
	MinQuality = 1
	MaxQuality = 100

	// PixelsPerCM is the density used to turn a print area into pixels (96 DPI).
	PixelsPerCM = 37.7952755906

	// scaleStep is counted in tenths so 1.1, 1.2, ... stay exact.
	scaleStep = 1
)

// CMToPixels converts a physical length to a pixel count at the given density.
func CMToPixels(cm, pixelsPerCM float64) int {
	return int(math.Round(cm * pixelsPerCM))
}

// Envelope is the pixel footprint and byte-size window a final image must fit.
type Envelope struct {
	PixelWidth     int
	PixelHeight    int
	MinBytes       int64
	MaxBytes       int64
	InitialQuality int
	QualityStep    int
	MaxScaleFactor float64
}

type EnvelopeSettings struct {
	WidthCM        float64
	HeightCM       float64
	PixelsPerCM    float64
	MinBytes       int64
	MaxBytes       int64
	InitialQuality int
	QualityStep    int
	MaxScaleFactor float64
}

// DefaultEnvelopeSettings is a 4cm×2cm area between 10KB and 20KB.
func DefaultEnvelopeSettings() EnvelopeSettings {
	return EnvelopeSettings{
		WidthCM:        4,
		HeightCM:       2,
		PixelsPerCM:    PixelsPerCM,
		MinBytes:       10 * 1024,
		MaxBytes:       20 * 1024,
		InitialQuality: 85,
		QualityStep:    5,
		MaxScaleFactor: 4,
	}
}

func NewEnvelope(settings EnvelopeSettings) (Envelope, error) {
	e := Envelope{
		PixelWidth:     CMToPixels(settings.WidthCM, settings.PixelsPerCM),
		PixelHeight:    CMToPixels(settings.HeightCM, settings.PixelsPerCM),
		MinBytes:       settings.MinBytes,
		MaxBytes:       settings.MaxBytes,
		InitialQuality: settings.InitialQuality,
		QualityStep:    settings.QualityStep,
		MaxScaleFactor: settings.MaxScaleFactor,
	}

	switch {
	case e.PixelWidth < 1 || e.PixelHeight < 1:
		return Envelope{}, fmt.Errorf("%w: pixel size %dx%d", ErrInvalidEnvelope, e.PixelWidth, e.PixelHeight)
	case e.MinBytes < 0 || e.MinBytes >= e.MaxBytes:
		return Envelope{}, fmt.Errorf("%w: min bytes %d must be below max bytes %d",
			ErrInvalidEnvelope, e.MinBytes, e.MaxBytes)
	case e.InitialQuality < MinQuality || e.InitialQuality > MaxQuality:
		return Envelope{}, fmt.Errorf("%w: initial quality %d out of [%d,%d]",
			ErrInvalidEnvelope, e.InitialQuality, MinQuality, MaxQuality)
	case e.QualityStep < 1:
		return Envelope{}, fmt.Errorf("%w: quality step %d", ErrInvalidEnvelope, e.QualityStep)
	case e.MaxScaleFactor < 1.1:
		return Envelope{}, fmt.Errorf("%w: max scale factor %.2f below 1.1", ErrInvalidEnvelope, e.MaxScaleFactor)
	}

	return e, nil
}

// Contains reports whether size lies in [MinBytes, MaxBytes].
func (e Envelope) Contains(size int64) bool {
	return size >= e.MinBytes && size <= e.MaxBytes
}

// Canvas returns the pixel dimensions of the envelope grown by scale.
func (e Envelope) Canvas(scale float64) (int, int) {
	return int(math.Round(float64(e.PixelWidth) * scale)), int(math.Round(float64(e.PixelHeight) * scale))
}

// FirstAttempt is the attempt the quality search starts with.
func (e Envelope) FirstAttempt() Attempt {
	return Attempt{
		Phase:       PhaseQuality,
		Pass:        1,
		Quality:     e.InitialQuality,
		ScaleFactor: 1,
		Width:       e.PixelWidth,
		Height:      e.PixelHeight,
	}
}

// NextQuality returns the attempt that follows a measured quality-search
// attempt. The second result is false when a is final: its size is in range,
// quality saturated at the bound it would have to cross, or the search would
// turn back. Quality only moves one way, so the search ends after at most
// MaxQuality/QualityStep+1 passes.
func (e Envelope) NextQuality(a Attempt) (Attempt, bool) {
	dir, ok := e.wanted(a)
	if !ok || (a.Direction != 0 && dir != a.Direction) {
		return a, false
	}

	return Attempt{
		Phase:       PhaseQuality,
		Pass:        a.Pass + 1,
		Quality:     min(max(a.Quality+int(dir)*e.QualityStep, MinQuality), MaxQuality),
		Direction:   dir,
		ScaleFactor: a.ScaleFactor,
		Width:       a.Width,
		Height:      a.Height,
	}, true
}

// Overshot reports whether a final attempt raised quality past the whole
// window. The attempt before it was below MinBytes and is the one to keep,
// since only an undersized result can still be fixed by upscaling.
func (e Envelope) Overshot(a Attempt) bool {
	return a.Direction == Up && a.ByteSize > e.MaxBytes
}

// wanted returns the direction quality has to move for a to approach the window.
func (e Envelope) wanted(a Attempt) (Direction, bool) {
	switch {
	case a.ByteSize < e.MinBytes && a.Quality < MaxQuality:
		return Up, true
	case a.ByteSize > e.MaxBytes && a.Quality > MinQuality:
		return Down, true
	default:
		return 0, false
	}
}

// NextScale returns the upscale attempt that follows a. The second result is
// false when a already reaches MinBytes or the next scale would exceed
// MaxScaleFactor.
func (e Envelope) NextScale(a Attempt) (Attempt, bool) {
	if a.ByteSize >= e.MinBytes {
		return a, false
	}

	tenths := int(math.Round(a.ScaleFactor*10)) + scaleStep
	scale := float64(tenths) / 10
	if scale > e.MaxScaleFactor+1e-9 {
		return a, false
	}

	pass := 1
	if a.Phase == PhaseUpscale {
		pass = a.Pass + 1
	}

	w, h := e.Canvas(scale)

	return Attempt{
		Phase:       PhaseUpscale,
		Pass:        pass,
		Quality:     MaxQuality,
		ScaleFactor: scale,
		Width:       w,
		Height:      h,
	}, true
}
