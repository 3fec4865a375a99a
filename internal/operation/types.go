package operation

import (
	"fmt"

	"reshape/internal/source"
)

// Type tags an Operation.
type Type string

const (
	TypeRename Type = "rename"
	TypeMove   Type = "move"
	TypeRemove Type = "remove"
)

// Scope limits a rename.
type Scope string

const (
	ScopeFile    Scope = "file"
	ScopeProject Scope = "project"
)

// RemovalMethod records how a remove was carried out.
type RemovalMethod string

const (
	RemovalStandard   RemovalMethod = "standard"
	RemovalAggressive RemovalMethod = "aggressive"
	RemovalManual     RemovalMethod = "manual"
	RemovalFailed     RemovalMethod = "failed"
)

// Selector identifies one declaration.
type Selector struct {
	Name          string         `json:"name"`
	Kind          source.Kind    `json:"kind"`
	FilePath      string         `json:"filePath"`
	Parent        *source.Parent `json:"parent,omitempty"`
	SignatureHint string         `json:"signatureHint,omitempty"`
}

func (s Selector) String() string {
	if s.Parent != nil {
		return fmt.Sprintf("%s %s.%s in %s", s.Kind, s.Parent.Name, s.Name, s.FilePath)
	}
	return fmt.Sprintf("%s %s in %s", s.Kind, s.Name, s.FilePath)
}

// RemoveOptions tunes a remove operation.
type RemoveOptions struct {
	ForceRemove          bool `json:"forceRemove"`
	FallbackToAggressive bool `json:"fallbackToAggressive"`
	CleanupDependencies  bool `json:"cleanupDependencies"`
}

// Operation is a single transformation request. Fields that do not apply to
// Type are ignored.
type Operation struct {
	Type           Type           `json:"type"`
	Selector       Selector       `json:"selector"`
	NewName        string         `json:"newName,omitempty"`
	Scope          Scope          `json:"scope,omitempty"`
	TargetFilePath string         `json:"targetFilePath,omitempty"`
	Options        *RemoveOptions `json:"options,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// Rename builds a rename operation.
func Rename(sel Selector, newName string, scope Scope) Operation {
	return Operation{Type: TypeRename, Selector: sel, NewName: newName, Scope: scope}
}

// Move builds a move operation.
func Move(sel Selector, target string) Operation {
	return Operation{Type: TypeMove, Selector: sel, TargetFilePath: target}
}

// Remove builds a remove operation.
func Remove(sel Selector, opts RemoveOptions) Operation {
	return Operation{Type: TypeRemove, Selector: sel, Options: &opts}
}

// Normalize fills defaults: project scope for renames and zero options for
// removes.
func (op *Operation) Normalize() {
	switch op.Type {
	case TypeRename:
		if op.Scope == "" {
			op.Scope = ScopeProject
		}
	case TypeRemove:
		if op.Options == nil {
			op.Options = &RemoveOptions{}
		}
	}
}

// RemoveOpts returns the remove options, never nil.
func (op Operation) RemoveOpts() RemoveOptions {
	if op.Options == nil {
		return RemoveOptions{}
	}
	return *op.Options
}

// Result is the outcome of one operation.
type Result struct {
	Success       bool          `json:"success"`
	Operation     Operation     `json:"operation"`
	Error         string        `json:"error,omitempty"`
	ErrorKind     ErrorKind     `json:"errorKind,omitempty"`
	AffectedFiles []string      `json:"affectedFiles"`
	RemovalMethod RemovalMethod `json:"removalMethod,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Verified      bool          `json:"verified"`
	// Index is the operation's position in its batch.
	Index int `json:"index"`

	// Dependencies lists identifiers a moved declaration needs at its
	// destination. Filled by the mover for the dependency check.
	Dependencies []string `json:"-"`
}

// NewResult starts a result for op.
func NewResult(op Operation) *Result {
	return &Result{Operation: op, AffectedFiles: []string{}}
}

// Fail marks the result failed with err.
func (r *Result) Fail(err error) *Result {
	r.Success = false
	r.Error = err.Error()
	r.ErrorKind = KindOf(err)
	return r
}

// AddAffected appends paths, keeping the first occurrence of each.
func (r *Result) AddAffected(paths ...string) {
	for _, p := range paths {
		seen := false
		for _, existing := range r.AffectedFiles {
			if existing == p {
				seen = true
				break
			}
		}
		if !seen {
			r.AffectedFiles = append(r.AffectedFiles, p)
		}
	}
}

// Warn attaches a warning.
func (r *Result) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Batch is an ordered list of operations.
type Batch struct {
	Operations []Operation  `json:"operations"`
	Options    BatchOptions `json:"options"`
}

// BatchOptions controls failure handling. StopOnError defaults to true.
type BatchOptions struct {
	StopOnError *bool `json:"stopOnError,omitempty"`
}

// StopsOnError reports the effective stopOnError setting.
func (o BatchOptions) StopsOnError() bool {
	return o.StopOnError == nil || *o.StopOnError
}

// Summary counts batch outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	// BatchID identifies the batch in the journal.
	BatchID  string   `json:"batchId,omitempty"`
	Success  bool     `json:"success"`
	Results  []Result `json:"results"`
	Error    string   `json:"error,omitempty"`
	Summary  Summary  `json:"summary"`
	Parallel bool     `json:"parallel"`
}
