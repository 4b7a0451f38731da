package metha

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Checkpoint is the persisted mid-harvest resume cursor: exactly four
// fields, in this order. A checkpoint with any other arity is corrupt (see
// CorruptStateError).
type Checkpoint struct {
	SetSpec         string
	ResumptionToken string
	EffectiveFrom   string
	EffectiveUntil  string
}

// fields renders the checkpoint as its four tab-separated values, missing
// optionals serialized as the empty string.
func (c Checkpoint) fields() []string {
	return []string{c.SetSpec, c.ResumptionToken, c.EffectiveFrom, c.EffectiveUntil}
}

// StateManager durably stores the last-successful-harvest datestamp (the
// LastHarvestMarker) and a mid-harvest resume Checkpoint. At most one
// Checkpoint exists at any time; its presence means a harvest is in
// progress.
type StateManager interface {
	LoadState() (*Checkpoint, error)
	SaveState(cp Checkpoint) error
	ClearState() error

	LoadDate() (string, error)
	SaveDate(date string) error
}

// FileStateManager is the default StateManager: a tab-separated checkpoint
// file and a sibling last-harvest-marker file, both written atomically
// (write-temp, rename) so a crash mid-write never leaves loadState reading
// a partial record.
type FileStateManager struct {
	Dir string

	checkpointName string
	markerName     string
}

// NewFileStateManager returns a FileStateManager rooted at dir. dir is
// created on first write if it does not yet exist.
func NewFileStateManager(dir string) *FileStateManager {
	return &FileStateManager{
		Dir:            dir,
		checkpointName: CheckpointFile,
		markerName:     "last_harvest_date.txt",
	}
}

func (m *FileStateManager) checkpointPath() string {
	return filepath.Join(m.Dir, m.checkpointName)
}

func (m *FileStateManager) markerPath() string {
	return filepath.Join(m.Dir, m.markerName)
}

// LoadState implements StateManager.
func (m *FileStateManager) LoadState() (*Checkpoint, error) {
	b, err := os.ReadFile(m.checkpointPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	content := strings.TrimRight(string(b), "\n")
	if content == "" {
		return nil, nil
	}
	fields := strings.Split(content, "\t")
	if len(fields) != 4 {
		return nil, &CorruptStateError{Fields: fields}
	}
	return &Checkpoint{
		SetSpec:         fields[0],
		ResumptionToken: fields[1],
		EffectiveFrom:   fields[2],
		EffectiveUntil:  fields[3],
	}, nil
}

// SaveState implements StateManager. Atomic with respect to a process
// crash: after a crash, LoadState returns either the previous checkpoint or
// the new one, never a partial write.
func (m *FileStateManager) SaveState(cp Checkpoint) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return err
	}
	line := strings.Join(cp.fields(), "\t") + "\n"
	return atomicWriteFile(m.checkpointPath(), []byte(line))
}

// ClearState implements StateManager.
func (m *FileStateManager) ClearState() error {
	err := os.Remove(m.checkpointPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadDate implements StateManager.
func (m *FileStateManager) LoadDate() (string, error) {
	b, err := os.ReadFile(m.markerPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// SaveDate implements StateManager.
func (m *FileStateManager) SaveDate(date string) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return err
	}
	return atomicWriteFile(m.markerPath(), []byte(date+"\n"))
}

// atomicWriteFile writes data to a uniquely-named temp file in the same
// directory as path, syncs it, then renames it over path. Rename within a
// single filesystem is atomic, so a reader never observes a partial write.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(path), uuid.New().String()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
