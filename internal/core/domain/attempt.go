package domain

type Phase string

const (
	PhaseFast    Phase = "fast"
	PhaseQuality Phase = "quality"
	PhaseUpscale Phase = "upscale"
)

// Direction is the way the quality search moved to reach an attempt.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// Attempt is one encode pass and what it measured on disk.
type Attempt struct {
	Phase       Phase
	Pass        int
	Quality     int
	Direction   Direction
	ScaleFactor float64
	Width       int
	Height      int
	ByteSize    int64
	Path        string
}
