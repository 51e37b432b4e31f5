// Package patch applies ordered, version- and scope-keyed unified diffs to
// a staged source tree.
package patch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// Scope selects which staged tree a patch record targets.
type Scope string

const (
	// Package patches apply to the upstream (extracted) tree.
	Package Scope = "package"
	// Local patches apply to the in-place tree.
	Local Scope = "local"
)

// Operation is one patch file applied under a base path.
type Operation struct {
	// File is the patch payload path, relative to the staging root.
	File string `yaml:"patch_file"`
	// Base is the directory, relative to the staging root, that file
	// names inside the payload are resolved against.
	Base string `yaml:"base_path,omitempty"`
	// Strip drops leading path components from names in the payload.
	Strip int `yaml:"strip,omitempty"`

	Description string `yaml:"patch_description,omitempty"`
	Type        string `yaml:"patch_type,omitempty"`
}

// Record is the ordered list of operations for one version and scope.
type Record struct {
	Version string
	Scope   Scope
	Ops     []Operation
}

// ApplicationError reports the patch that failed to apply. Operations
// applied before it are left on disk.
type ApplicationError struct {
	Scope   Scope
	Version string
	// Index is the position of the failing operation within its record.
	Index int
	File  string
	Err   error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("apply %s patch #%d (%s) for version %s: %v", e.Scope, e.Index, e.File, e.Version, e.Err)
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

var errNotSingleFile = errors.New("payload must describe exactly one file")

// Apply applies a single-file unified diff to before and returns the
// patched content. It performs no I/O.
func Apply(before, payload []byte) ([]byte, error) {
	files, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	if len(files) != 1 {
		return nil, errNotSingleFile
	}
	return ApplyFile(before, files[0])
}

// Parse splits a payload into per-file diffs.
func Parse(payload []byte) ([]*gitdiff.File, error) {
	files, _, err := gitdiff.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	return files, nil
}

// ApplyFile applies one parsed file diff to before.
func ApplyFile(before []byte, f *gitdiff.File) ([]byte, error) {
	if f.IsBinary {
		return nil, fmt.Errorf("%s: binary patches are not supported", f.NewName)
	}
	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(before), f); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
