package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

type captureSink struct {
	pubs []display.Publication
}

func (c *captureSink) Dispatch(pub display.Publication) bool {
	c.pubs = append(c.pubs, pub)
	return true
}

func newPublish(t *testing.T, sink display.Sink) step.Step {
	t.Helper()
	s, err := NewSink(map[string]any{"channel": "gm_mean", "kind": "timeseries"},
		step.Dependencies{
			Display: sink,
			Inputs:  []string{"activity_mean"},
		})
	require.NoError(t, err)
	return s
}

func TestExecuteDispatches(t *testing.T) {
	sink := &captureSink{}
	s := newPublish(t, sink)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := step.WithFrameMeta(context.Background(), step.FrameMeta{Index: 12, Timestamp: ts})

	out, err := s.Execute(ctx, step.Values{"activity_mean": 0.5})
	require.NoError(t, err)
	assert.Nil(t, out)

	require.Len(t, sink.pubs, 1)
	pub := sink.pubs[0]
	assert.Equal(t, "gm_mean", pub.Channel)
	assert.Equal(t, display.KindTimeseries, pub.Kind)
	assert.Equal(t, 12, pub.FrameIndex)
	assert.Equal(t, ts, pub.Timestamp)
	assert.Equal(t, 0.5, pub.Payload)
}

func TestExecuteVolumePayload(t *testing.T) {
	sink := &captureSink{}
	s := newPublish(t, sink)

	vol := volume.New([3]int{2, 1, 1})
	vol.Set(1, 0, 0, 3)

	_, err := s.Execute(context.Background(), step.Values{"activity_mean": vol})
	require.NoError(t, err)

	require.Len(t, sink.pubs, 1)
	payload := sink.pubs[0].Payload.(map[string]any)
	assert.Equal(t, [3]int{2, 1, 1}, payload["shape"])
	assert.Equal(t, []float64{0, 3}, payload["data"])
}

func TestNewSinkValidation(t *testing.T) {
	sink := &captureSink{}
	deps := step.Dependencies{Display: sink, Inputs: []string{"v"}}

	_, err := NewSink(map[string]any{"kind": "bar"}, deps)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	_, err = NewSink(map[string]any{"channel": "c", "kind": "hologram"}, deps)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	_, err = NewSink(map[string]any{"channel": "c", "kind": "bar"},
		step.Dependencies{Inputs: []string{"v"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}
