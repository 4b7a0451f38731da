package metha

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewFileStateManager(dir)

	cp, err := m.LoadState()
	require.NoError(t, err)
	assert.Nil(t, cp)

	want := Checkpoint{SetSpec: "A", ResumptionToken: "tok", EffectiveFrom: "2016-01-01", EffectiveUntil: "2016-02-01"}
	require.NoError(t, m.SaveState(want))

	got, err := m.LoadState()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, m.ClearState())
	got, err = m.LoadState()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStateManagerCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	m := NewFileStateManager(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, CheckpointFile), []byte("only\tthree\tfields\n"), 0644))

	_, err := m.LoadState()
	require.Error(t, err)

	var corrupt *CorruptStateError
	require.ErrorAs(t, err, &corrupt)
	assert.Len(t, corrupt.Fields, 3)
}

func TestFileStateManagerDateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewFileStateManager(dir)

	date, err := m.LoadDate()
	require.NoError(t, err)
	assert.Equal(t, "", date)

	require.NoError(t, m.SaveDate("2016-07-12"))
	date, err = m.LoadDate()
	require.NoError(t, err)
	assert.Equal(t, "2016-07-12", date)
}

func TestFileStateManagerSaveStateIsAtomic(t *testing.T) {
	dir := t.TempDir()
	m := NewFileStateManager(dir)

	require.NoError(t, m.SaveState(Checkpoint{SetSpec: "A", ResumptionToken: "t1"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}
