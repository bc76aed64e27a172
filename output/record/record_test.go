package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

func newRecorder(t *testing.T, recordingID string) (*Sink, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewSink(map[string]any{"directory": root}, step.Dependencies{
		Inputs:      []string{"corrected"},
		RecordingID: recordingID,
	})
	require.NoError(t, err)
	return s.(*Sink), root
}

func TestExecuteWritesVolume(t *testing.T) {
	s, _ := newRecorder(t, "run-42")

	vol := volume.New([3]int{2, 2, 2})
	vol.Set(1, 1, 1, 9)

	ctx := step.WithFrameMeta(context.Background(), step.FrameMeta{Index: 7})
	out, err := s.Execute(ctx, step.Values{"corrected": vol})
	require.NoError(t, err)
	assert.Nil(t, out)

	saved, err := volume.Load(filepath.Join(s.Dir(), "volume_0007.nii"))
	require.NoError(t, err)
	assert.Equal(t, vol.Shape, saved.Shape)
	assert.Equal(t, 9.0, saved.At(1, 1, 1))
}

func TestExecuteWritesVectorJSON(t *testing.T) {
	s, _ := newRecorder(t, "run-42")

	ctx := step.WithFrameMeta(context.Background(), step.FrameMeta{Index: 3})
	_, err := s.Execute(ctx, step.Values{"corrected": []float64{1, 2.5}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "value_0003.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[1, 2.5]", string(data))
}

func TestRunDirectoryUsesRecordingID(t *testing.T) {
	s, root := newRecorder(t, "sub-01-run-02")
	assert.Equal(t, filepath.Join(root, "sub-01-run-02"), s.Dir())

	info, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunDirectoryFallsBackToUUID(t *testing.T) {
	s, root := newRecorder(t, "")

	rel, err := filepath.Rel(root, s.Dir())
	require.NoError(t, err)
	assert.Len(t, rel, 36, "uuid-named run directory")
}

func TestDirectoryFallsBackToConfigured(t *testing.T) {
	root := t.TempDir()
	s, err := NewSink(nil, step.Dependencies{
		Inputs:       []string{"v"},
		RecordingID:  "run-1",
		RecordingDir: root,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run-1"), s.(*Sink).Dir())
}

func TestNewSinkMissingDirectory(t *testing.T) {
	_, err := NewSink(nil, step.Dependencies{Inputs: []string{"v"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}
