// Package record is the sink step that persists frame values to the
// recording directory. Volumes become one NIfTI file per frame; vectors
// and scalars become JSON. Unlike display publishing, a failed write is a
// real step error, recordings are the durable output of a run.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

type config struct {
	// Directory is the recording root, defaulting to the configured
	// recording directory. Frames land in a per-run subdirectory
	// beneath it.
	Directory string `param:"directory"`
}

// Sink writes one file per consumed frame.
type Sink struct {
	in  string
	dir string
}

// NewSink creates a record step. The run subdirectory is created eagerly
// and is named by the recording id, or by a fresh uuid when none is
// configured.
func NewSink(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Directory == "" {
		cfg.Directory = deps.RecordingDir
	}
	if cfg.Directory == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: directory is required", errors.ErrInvalidParameter),
			"record", "NewSink", "directory validation")
	}
	if err := step.RequirePorts(deps, 1, 0); err != nil {
		return nil, err
	}

	runID := deps.RecordingID
	if runID == "" {
		runID = uuid.NewString()
	}
	dir := filepath.Join(cfg.Directory, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapConfig(err, "record", "NewSink", "create "+dir)
	}

	return &Sink{in: deps.Inputs[0], dir: dir}, nil
}

// Execute persists the input value, named by the frame index.
func (s *Sink) Execute(ctx context.Context, in step.Values) (step.Values, error) {
	raw, ok := in[s.in]
	if !ok {
		return nil, errors.WrapStep(
			fmt.Errorf("port %q: no value", s.in),
			"record", "Execute", "read input")
	}

	var index int
	if meta, ok := step.FrameMetaFrom(ctx); ok {
		index = meta.Index
	}

	var err error
	switch v := raw.(type) {
	case *volume.Volume:
		err = volume.Save(s.volumePath(index), v)
	default:
		err = s.writeJSON(index, v)
	}
	if err != nil {
		return nil, errors.WrapStep(err, "record", "Execute", fmt.Sprintf("persist frame %d", index))
	}
	return nil, nil
}

// Dir returns the run subdirectory frames are written into.
func (s *Sink) Dir() string { return s.dir }

func (s *Sink) volumePath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("volume_%04d.nii", index))
}

func (s *Sink) writeJSON(index int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("value_%04d.json", index))
	return os.WriteFile(path, data, 0o644)
}

// Register adds the record step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "record",
		Kind:        step.KindSink,
		Description: "Persists frame values to the recording directory",
		Factory:     NewSink,
	})
}
