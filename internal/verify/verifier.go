// Package verify re-reads the files an operation touched from disk and
// checks that the operation's post-conditions hold there.
package verify

import (
	"fmt"

	"reshape/internal/operation"
	"reshape/internal/source"

	"go.uber.org/zap"
)

// Verifier checks persisted results.
type Verifier struct {
	project *source.Project
	log     *zap.Logger
}

// New creates a verifier over project.
func New(project *source.Project, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{project: project, log: log}
}

// Verify reloads every affected file from disk and checks the post-conditions
// of res.Operation. It returns whether they hold, plus warnings and the
// reasons for failure.
func (v *Verifier) Verify(res *operation.Result) (bool, []string, []string) {
	files := make(map[string]*source.File, len(res.AffectedFiles))
	for _, path := range res.AffectedFiles {
		f, err := v.project.Reload(path)
		if err != nil {
			return false, nil, []string{fmt.Sprintf("cannot reload %s: %v", v.project.Rel(path), err)}
		}
		files[f.Path] = f
	}
	load := func(path string) (*source.File, error) {
		abs := v.project.Abs(path)
		if f, ok := files[abs]; ok {
			return f, nil
		}
		return v.project.Reload(abs)
	}

	var problems, warnings []string
	op := res.Operation
	sel := op.Selector
	switch op.Type {
	case operation.TypeRename:
		problems = v.rename(op, files, load)
	case operation.TypeMove:
		src, err := load(sel.FilePath)
		if err != nil {
			return false, nil, []string{err.Error()}
		}
		if len(declared(src, sel.Kind, sel.Name, sel.Parent)) > 0 {
			problems = append(problems, fmt.Sprintf("%s still declared in %s", sel.Name, v.project.Rel(src.Path)))
		}
		target, err := load(op.TargetFilePath)
		if err != nil {
			return false, nil, []string{err.Error()}
		}
		moved := declared(target, sel.Kind, sel.Name, nil)
		if len(moved) == 0 {
			if target.HasErrors && source.DeclarationPattern(sel.Kind, sel.Name).Match(target.Content) {
				warnings = append(warnings, fmt.Sprintf("%s has syntax errors; found %s by text only", v.project.Rel(target.Path), sel.Name))
			} else {
				problems = append(problems, fmt.Sprintf("%s not declared in %s", sel.Name, v.project.Rel(target.Path)))
			}
		}
		problems = append(problems, v.staleImports(src.Path, target.Path, sel.Name, len(moved) > 0 && moved[0].Default)...)
	case operation.TypeRemove:
		f, err := load(sel.FilePath)
		if err != nil {
			return false, nil, []string{err.Error()}
		}
		if len(declared(f, sel.Kind, sel.Name, sel.Parent)) > 0 {
			problems = append(problems, fmt.Sprintf("%s still declared in %s", sel.Name, v.project.Rel(f.Path)))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown operation type %q", op.Type))
	}

	if len(problems) > 0 {
		v.log.Warn("verification failed", zap.String("type", string(op.Type)), zap.Strings("problems", problems))
	}
	return len(problems) == 0, warnings, problems
}

func (v *Verifier) rename(op operation.Operation, files map[string]*source.File, load func(string) (*source.File, error)) []string {
	sel := op.Selector
	home, err := load(sel.FilePath)
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string
	if len(declared(home, sel.Kind, sel.Name, sel.Parent)) > 0 {
		problems = append(problems, fmt.Sprintf("%s still declared in %s", sel.Name, v.project.Rel(home.Path)))
	}
	if len(declared(home, sel.Kind, op.NewName, sel.Parent)) == 0 {
		problems = append(problems, fmt.Sprintf("%s not declared in %s", op.NewName, v.project.Rel(home.Path)))
	}
	if op.Scope == operation.ScopeFile || sel.Kind.Member() {
		return problems
	}

	for path, f := range files {
		if path == home.Path {
			continue
		}
		for _, imp := range f.Imports {
			if v.project.ResolveSpecifier(f.Path, imp.Source) != home.Path {
				continue
			}
			for _, s := range imp.Named {
				if s.Name == sel.Name {
					problems = append(problems, fmt.Sprintf("%s still imports %s", v.project.Rel(f.Path), sel.Name))
				}
			}
		}
		if !mentions(f, op.NewName) {
			problems = append(problems, fmt.Sprintf("%s does not mention %s", v.project.Rel(f.Path), op.NewName))
		}
	}
	return problems
}

// staleImports lists loaded files that still import name from the file it
// moved out of. A moved default export is followed through default imports
// and named imports of "default".
func (v *Verifier) staleImports(from, to, name string, isDefault bool) []string {
	exported := name
	if isDefault {
		exported = "default"
	}
	var problems []string
	for _, f := range v.project.Files() {
		if f.Path == from || f.Path == to {
			continue
		}
		for _, imp := range f.Imports {
			if v.project.ResolveSpecifier(f.Path, imp.Source) != from {
				continue
			}
			stale := isDefault && imp.Default != ""
			for _, s := range imp.Named {
				stale = stale || s.Name == exported
			}
			if stale {
				problems = append(problems, fmt.Sprintf("%s still imports %s from %s", v.project.Rel(f.Path), name, v.project.Rel(from)))
			}
		}
	}
	return problems
}

// VerifyDependencies returns the names the file at target neither declares
// nor imports.
func (v *Verifier) VerifyDependencies(target string, names []string) []string {
	f, err := v.project.Reload(target)
	if err != nil {
		return names
	}
	var missing []string
	for _, name := range names {
		if !f.Binds(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func declared(f *source.File, kind source.Kind, name string, parent *source.Parent) []*source.Declaration {
	var out []*source.Declaration
	for _, d := range f.Find(kind, name) {
		if parent == nil || (d.Parent != nil && *d.Parent == *parent) {
			out = append(out, d)
		}
	}
	return out
}

func mentions(f *source.File, name string) bool {
	for _, t := range f.Tokens {
		if t.Text == name {
			return true
		}
	}
	return false
}
