package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/wikimill/pkg/persist"
)

// stateBasename is the checkpoint filename without extension.
const stateBasename = "checkpoint"

// dirPerm is the permission for created checkpoint directories.
const dirPerm = 0o750

// Sentinel errors for checkpoint validation.
var (
	// ErrDumpMismatch indicates the checkpoint belongs to a different dump.
	ErrDumpMismatch = errors.New("checkpoint dump path mismatch")

	// ErrFormatMismatch indicates the checkpoint was written for a different
	// target format.
	ErrFormatMismatch = errors.New("checkpoint format mismatch")
)

// DefaultDir returns the well-known checkpoint location beside an output
// directory.
func DefaultDir(outputDir string) string {
	return filepath.Join(outputDir, ".wikimill")
}

// Manager owns the single checkpoint record for a run. Only the control
// thread mutates it; commits are synchronous and atomic.
type Manager struct {
	dir       string
	persister *persist.Persister[State]
}

// NewManager creates a manager storing the checkpoint under dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		persister: persist.NewPersister[State](stateBasename, persist.NewJSONCodec()),
	}
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, stateBasename+".json")
}

// Exists reports whether a checkpoint record is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.Path())

	return err == nil
}

// Clear removes the checkpoint record.
func (m *Manager) Clear() error {
	err := os.Remove(m.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear checkpoint: %w", err)
	}

	return nil
}

// Load reads the checkpoint once at startup.
func (m *Manager) Load() (*State, error) {
	var state *State

	err := m.persister.Load(m.dir, func(s *State) {
		state = s
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// Validate checks that the checkpoint matches the current dump and format.
func (m *Manager) Validate(state *State, dumpPath, format string) error {
	if state.DumpPath != dumpPath {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrDumpMismatch, state.DumpPath, dumpPath)
	}

	if state.Format != format {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrFormatMismatch, state.Format, format)
	}

	return nil
}

// Commit persists the checkpoint synchronously. Called only after the output
// writer reports the entire batch as durably written.
func (m *Manager) Commit(state State) error {
	err := os.MkdirAll(m.dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	state.Version = StateVersion
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	return m.persister.Save(m.dir, func() *State {
		return &state
	})
}
