package symbol

import (
	"strings"

	"reshape/internal/operation"
	"reshape/internal/source"
)

// Match is a resolved selector.
type Match struct {
	Decl *source.Declaration
	// Candidates is the number of declarations left after every filter.
	Candidates int
}

// Ambiguous reports whether more than one declaration matched.
func (m *Match) Ambiguous() bool {
	return m.Candidates > 1
}

// Finder resolves selectors against a project.
type Finder struct {
	project *source.Project
}

// NewFinder creates a finder over project.
func NewFinder(project *source.Project) *Finder {
	return &Finder{project: project}
}

// Resolve finds the declaration named by sel. Candidates are narrowed by
// kind and name, then by parent, then by signature hint. When several remain
// the first in source order is returned.
func (f *Finder) Resolve(sel operation.Selector) (*Match, error) {
	file, err := f.project.Load(sel.FilePath)
	if err != nil {
		return nil, operation.Wrap(operation.KindValidation, err, "cannot load "+sel.FilePath)
	}

	candidates := file.Find(sel.Kind, sel.Name)
	if sel.Parent != nil {
		candidates = filter(candidates, func(d *source.Declaration) bool {
			return d.Parent != nil && d.Parent.Name == sel.Parent.Name && d.Parent.Kind == sel.Parent.Kind
		})
	}
	if hint := strings.TrimSpace(sel.SignatureHint); hint != "" && len(candidates) > 0 {
		candidates = filter(candidates, func(d *source.Declaration) bool {
			return strings.Contains(d.Signature, hint)
		})
	}
	if len(candidates) == 0 {
		return nil, operation.Errorf(operation.KindSymbolNotFound, "%s not found", sel)
	}
	return &Match{Decl: candidates[0], Candidates: len(candidates)}, nil
}

// References lists every occurrence of d in the loaded files.
func (f *Finder) References(d *source.Declaration) ([]source.Reference, error) {
	return f.project.References(d)
}

// ExternalReferences lists occurrences of d outside its own file.
func (f *Finder) ExternalReferences(d *source.Declaration) ([]source.Reference, error) {
	return f.project.ExternalReferences(d)
}

// IsExported reports whether d is visible to other modules, either through
// an export modifier or a local export clause. Members follow their parent.
func (f *Finder) IsExported(d *source.Declaration) bool {
	if d.Exported {
		return true
	}
	file, err := f.project.Load(d.Path)
	if err != nil {
		return false
	}
	name := d.Name
	if d.Parent != nil {
		name = d.Parent.Name
	}
	for _, ec := range file.Exports {
		if ec.Source != "" {
			continue
		}
		for _, s := range ec.Specs {
			if s.Name == name {
				return true
			}
		}
	}
	return false
}

// RenameConflict reports an error when newName already names a declaration
// in d's scope that cannot share the name, or an import binding in d's file.
// Renaming to the current name counts as a conflict.
func (f *Finder) RenameConflict(d *source.Declaration, newName string) error {
	file, err := f.project.Load(d.Path)
	if err != nil {
		return operation.Wrap(operation.KindInternal, err, "cannot load "+d.Path)
	}
	for _, other := range file.Decls {
		if other.Name != newName || other.TopLevel != d.TopLevel || !sameParent(other.Parent, d.Parent) {
			continue
		}
		if clash(d.Kind, other.Kind) {
			return operation.Errorf(operation.KindNamingConflict, "%s %s already exists in %s", other.Kind, newName, f.project.Rel(d.Path))
		}
	}
	if d.TopLevel && file.ImportBinding(newName) != nil {
		return operation.Errorf(operation.KindNamingConflict, "%s is already imported in %s", newName, f.project.Rel(d.Path))
	}
	return nil
}

// MoveConflict reports an error when d's name is already bound at the top
// level of target, or when d is a default export and target has one. An
// import of d from the file it is moving out of is not a conflict.
func (f *Finder) MoveConflict(target string, d *source.Declaration) error {
	file, err := f.project.Load(target)
	if err != nil {
		return operation.Wrap(operation.KindInternal, err, "cannot load "+target)
	}
	name := d.Name
	if other := file.TopLevel(name); other != nil {
		return operation.Errorf(operation.KindNamingConflict, "%s %s already exists in %s", other.Kind, name, f.project.Rel(target))
	}
	if d.Default {
		for _, other := range file.Decls {
			if other.Default {
				return operation.Errorf(operation.KindNamingConflict, "%s already has a default export %s", f.project.Rel(target), other.Name)
			}
		}
	}
	if b := file.ImportBinding(name); b != nil {
		imported := b.Spec != nil && b.Spec.Name == name
		if d.Default {
			imported = b.Role == source.RoleImportDefault || b.Spec != nil && b.Spec.Name == "default"
		}
		if !imported || f.project.ResolveSpecifier(target, b.Import.Source) != f.project.Abs(d.Path) {
			return operation.Errorf(operation.KindNamingConflict, "%s is already imported in %s", name, f.project.Rel(target))
		}
	}
	return nil
}

// clash reports whether declarations of kinds a and b cannot share a name in
// one scope. Members share a single space. At the top level values and types
// live apart, and an interface merges with a class of the same name.
func clash(a, b source.Kind) bool {
	if a == b {
		return true
	}
	if member(a) || member(b) {
		return member(a) && member(b)
	}
	if a == source.KindInterface && b == source.KindClass || a == source.KindClass && b == source.KindInterface {
		return false
	}
	return value(a) && value(b) || typed(a) && typed(b)
}

func member(k source.Kind) bool {
	return k == source.KindMethod || k == source.KindProperty
}

func value(k source.Kind) bool {
	switch k {
	case source.KindFunction, source.KindClass, source.KindEnum, source.KindVariable:
		return true
	}
	return false
}

func typed(k source.Kind) bool {
	switch k {
	case source.KindInterface, source.KindType, source.KindClass, source.KindEnum:
		return true
	}
	return false
}

func filter(in []*source.Declaration, keep func(*source.Declaration) bool) []*source.Declaration {
	var out []*source.Declaration
	for _, d := range in {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func sameParent(a, b *source.Parent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
