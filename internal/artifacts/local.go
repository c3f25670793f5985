// File: internal/artifacts/local.go
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProofFile is the name of the screenshot taken after a confirmed submission.
const ProofFile = "success_proof.png"

// Local files screenshots under Root, one directory per job.
type Local struct {
	Root string
}

// StepPath returns <root>/<job>/step_<n>.png, creating the job directory.
func (l Local) StepPath(jobID string, step int) (string, error) {
	return l.File(jobID, fmt.Sprintf("step_%d.png", step))
}

// ProofPath returns <root>/<job>/success_proof.png, creating the job directory.
func (l Local) ProofPath(jobID string) (string, error) {
	return l.File(jobID, ProofFile)
}

// File returns <root>/<job>/<name>, creating the job directory.
func (l Local) File(jobID, name string) (string, error) {
	dir := filepath.Join(l.Root, safeSegment(jobID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// safeSegment keeps a job id from escaping the artifact root.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
