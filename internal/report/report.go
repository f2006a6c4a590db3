// Package report records what the last provisioning run did.
// The record is informational: nothing reads digests to decide whether to write.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the report's name inside the state directory.
const FileName = "last-run.json"

// Outcome of one step.
type Outcome string

const (
	Skipped  Outcome = "skipped"
	Applied  Outcome = "applied"
	Warned   Outcome = "warned"
	Failed   Outcome = "failed"
	Disabled Outcome = "disabled" // gated off for this variant
)

// StepResult is persisted per step.
type StepResult struct {
	Name     string        `json:"name"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Artifact is a file written during the run.
type Artifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Mode   string `json:"mode"`
}

// Run is persisted at <state_dir>/last-run.json.
type Run struct {
	ID        string       `json:"id"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Variant   string       `json:"variant"`
	Hostname  string       `json:"hostname,omitempty"`
	ServerIP  string       `json:"server_ip,omitempty"`
	Steps     []StepResult `json:"steps"`
	Artifacts []Artifact   `json:"artifacts"`
}

// New starts a run record with a fresh ID.
func New(variant string, started time.Time) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Started: started,
		Variant: variant,
	}
}

// AddStep appends a step outcome.
func (r *Run) AddStep(name string, outcome Outcome, detail string, d time.Duration) {
	r.Steps = append(r.Steps, StepResult{Name: name, Outcome: outcome, Detail: detail, Duration: d})
}

// AddArtifact records a written file. A later write of the same path
// replaces the earlier entry.
func (r *Run) AddArtifact(path string, data []byte, mode os.FileMode) {
	a := Artifact{Path: path, SHA256: Digest(data), Mode: fmt.Sprintf("%04o", mode.Perm())}
	for i := range r.Artifacts {
		if r.Artifacts[i].Path == path {
			r.Artifacts[i] = a
			return
		}
	}
	r.Artifacts = append(r.Artifacts, a)
}

// Outcome returns the recorded outcome of a step, or "" if it did not run.
func (r *Run) Outcome(step string) Outcome {
	for _, s := range r.Steps {
		if s.Name == step {
			return s.Outcome
		}
	}
	return ""
}

// Digest returns "sha256:<hex>" of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Path returns the report location inside stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Writer is the part of the host Save needs.
type Writer interface {
	WriteFile(path string, data []byte, mode os.FileMode) error
}

// Reader is the part of the host Load needs.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// Save writes r as indented JSON.
func Save(w Writer, stateDir string, r *Run) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return w.WriteFile(Path(stateDir), append(data, '\n'), 0644)
}

// Load reads the last run. It returns nil without error when none exists.
func Load(rd Reader, stateDir string) (*Run, error) {
	data, err := rd.ReadFile(Path(stateDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", Path(stateDir), err)
	}
	return &r, nil
}
