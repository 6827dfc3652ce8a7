package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartekus/sddgov/internal/projection"
)

// StateStore reads and writes runner state under one directory.
type StateStore struct {
	baseDir string
}

// NewStateStore creates a store rooted at baseDir (e.g. .agentic-sdd/run).
func NewStateStore(baseDir string) *StateStore {
	return &StateStore{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *StateStore) Dir() string { return s.baseDir }

func (s *StateStore) lastRunPath() string {
	return filepath.Join(s.baseDir, "last-run.json")
}

func (s *StateStore) checkPath(id string) string {
	// ids contain ':' which is not portable in file names
	return filepath.Join(s.baseDir, "checks", strings.ReplaceAll(id, ":", "_")+".json")
}

// ReadLastRun loads the last run summary. A missing file yields nil, nil.
func (s *StateStore) ReadLastRun() (*LastRun, error) {
	var last LastRun
	ok, err := readJSON(s.lastRunPath(), &last)
	if err != nil || !ok {
		return nil, err
	}
	return &last, nil
}

// ReadCheck loads the stored result of one check. A missing file yields nil, nil.
func (s *StateStore) ReadCheck(id string) (*CheckResult, error) {
	var res CheckResult
	ok, err := readJSON(s.checkPath(id), &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// WriteLastRun saves the run summary.
func (s *StateStore) WriteLastRun(last LastRun) error {
	return projection.WriteJSON(s.lastRunPath(), last)
}

// WriteCheckResult saves one check result.
func (s *StateStore) WriteCheckResult(res CheckResult) error {
	return projection.WriteJSON(s.checkPath(res.Check), res)
}

// Reset removes all state.
func (s *StateStore) Reset() error {
	return os.RemoveAll(s.baseDir)
}

// LoadFailed returns the checks that failed in the last run.
func (s *StateStore) LoadFailed() ([]string, error) {
	last, err := s.ReadLastRun()
	if err != nil || last == nil {
		return nil, err
	}
	return last.Failed, nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}
