package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/pipeline"
)

// RunRecord is the pipeline description written to the runs bucket at run
// start, so operators and viewers can see what a run id was configured to
// compute.
type RunRecord struct {
	RunID        string              `json:"run_id"`
	RegisteredAt time.Time           `json:"registered_at"`
	NSkip        int                 `json:"n_skip"`
	Steps        []pipeline.StepSpec `json:"steps"`
}

// RegisterRun writes the run record under the run id. Registration happens
// once, before the first frame; failure aborts run start.
func RegisterRun(ctx context.Context, kv jetstream.KeyValue, runID string, doc *pipeline.Document) error {
	if runID == "" || doc == nil {
		return errors.WrapConfig(errors.ErrInvalidConfig,
			"Engine", "RegisterRun", "run id and document validation")
	}

	record := RunRecord{
		RunID:        runID,
		RegisteredAt: time.Now().UTC(),
		NSkip:        doc.GlobalParameters.NSkip,
		Steps:        doc.Pipeline,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapConfig(err, "Engine", "RegisterRun", "encode run record")
	}

	if _, err := kv.Put(ctx, runID, data); err != nil {
		return errors.WrapConfig(err, "Engine", "RegisterRun", "store run "+runID)
	}
	return nil
}
