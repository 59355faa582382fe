package recast

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify a BuildError.
var (
	ErrConfig             = errors.New("invalid configuration")
	ErrEmptyInput         = errors.New("empty input")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrInvalidInput       = errors.New("invalid input")
)

// Stage names the pipeline step that raised an error.
type Stage string

const (
	StageIngest      Stage = "ingest"
	StageConfig      Stage = "config"
	StageHeightfield Stage = "heightfield"
	StageRasterize   Stage = "rasterize"
	StageCompact     Stage = "compact"
	StageRegions     Stage = "regions"
	StageContours    Stage = "contours"
	StagePolyMesh    Stage = "polygon mesh"
	StageDetailMesh  Stage = "detail mesh"
	StageGenerator   Stage = "generator"
)

// BuildError is returned by every fallible pipeline step.
type BuildError struct {
	Stage Stage
	Kind  error
	Msg   string
	Err   error
}

func (e *BuildError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *BuildError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(stage Stage, kind error, format string, args ...any) *BuildError {
	return &BuildError{Stage: stage, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// StageOf returns the stage recorded in err, or "" if err is not a BuildError.
func StageOf(err error) Stage {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Stage
	}
	return ""
}
