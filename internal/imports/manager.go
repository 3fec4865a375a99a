package imports

import (
	"fmt"

	"reshape/internal/source"

	"go.uber.org/zap"
)

// Manager keeps import statements consistent after declarations move or
// disappear, and remembers every file it touched.
type Manager struct {
	project *source.Project
	log     *zap.Logger
	updated []string
}

// NewManager creates a manager over project.
func NewManager(project *source.Project, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{project: project, log: log}
}

// UpdatedFiles lists files modified by the manager, in modification order.
func (m *Manager) UpdatedFiles() []string {
	return append([]string(nil), m.updated...)
}

type rewrite struct {
	path      string
	name      string
	local     string
	specifier string
	def       bool
	sole      bool
	typeOnly  bool
}

// UpdateImportsAfterMove points every import of name from oldPath at newPath.
// When isDefault is set the declaration is the default export, so default
// imports and named imports of "default" are followed instead. A statement
// importing only the moved binding has its specifier rewritten; otherwise the
// binding is split out and merged into an import of newPath. Imports in
// newPath itself are dropped since the declaration is now local. Uses that
// cannot be rewritten are returned as warnings.
func (m *Manager) UpdateImportsAfterMove(name, oldPath, newPath string, isDefault bool) ([]string, error) {
	oldPath, newPath = m.project.Abs(oldPath), m.project.Abs(newPath)
	exported := name
	if isDefault {
		exported = "default"
	}

	var (
		tasks    []rewrite
		warnings []string
	)
	for _, f := range m.project.Files() {
		if f.Path == oldPath {
			continue
		}
		for _, imp := range f.Imports {
			if m.project.ResolveSpecifier(f.Path, imp.Source) != oldPath {
				continue
			}
			specifier := source.Specifier(f.Path, newPath, imp.Source)
			if isDefault && imp.Default != "" {
				tasks = append(tasks, rewrite{
					path:      f.Path,
					name:      exported,
					local:     imp.Default,
					specifier: specifier,
					def:       true,
					sole:      imp.Namespace == "" && len(imp.Named) == 0,
					typeOnly:  imp.TypeOnly,
				})
			}
			for _, s := range imp.Named {
				if s.Name != exported {
					continue
				}
				tasks = append(tasks, rewrite{
					path:      f.Path,
					name:      exported,
					local:     s.Local(),
					specifier: specifier,
					sole:      imp.Default == "" && imp.Namespace == "" && len(imp.Named) == 1,
					typeOnly:  imp.TypeOnly || s.TypeOnly,
				})
			}
			if imp.Namespace != "" && usesMember(f, imp.Namespace, exported) {
				warnings = append(warnings, fmt.Sprintf("%s reaches %s through namespace %s; update it manually", m.project.Rel(f.Path), name, imp.Namespace))
			}
		}
		for _, ec := range f.Exports {
			if ec.Source == "" || m.project.ResolveSpecifier(f.Path, ec.Source) != oldPath {
				continue
			}
			for _, s := range ec.Specs {
				if s.Name == exported {
					warnings = append(warnings, fmt.Sprintf("%s re-exports %s from its old location", m.project.Rel(f.Path), name))
				}
			}
		}
	}

	for _, t := range tasks {
		if err := m.apply(t, newPath); err != nil {
			return warnings, err
		}
		m.touch(t.path)
	}
	return warnings, nil
}

func (m *Manager) apply(t rewrite, newPath string) error {
	switch {
	case t.path == newPath:
		_, err := m.project.RemoveImportBinding(t.path, t.local)
		return err
	case t.sole:
		return m.project.RetargetImport(t.path, t.local, t.specifier)
	default:
		if _, err := m.project.RemoveImportBinding(t.path, t.local); err != nil {
			return err
		}
		req := source.ImportRequest{Specifier: t.specifier, Local: t.local, TypeOnly: t.typeOnly}
		if t.def {
			req.Default = true
		} else {
			req.Name = t.name
		}
		_, err := m.project.AddImport(t.path, req)
		return err
	}
}

// Import adds a named import of name from the file at from into path,
// computing the specifier relative to path. styleOf is an existing
// specifier whose extension convention is followed.
func (m *Manager) Import(path, name, from, styleOf string) error {
	return m.add(path, from, styleOf, source.ImportRequest{Name: name})
}

// ImportDefault binds the default export of the file at from to local in
// path.
func (m *Manager) ImportDefault(path, local, from, styleOf string) error {
	return m.add(path, from, styleOf, source.ImportRequest{Default: true, Local: local})
}

func (m *Manager) add(path, from, styleOf string, req source.ImportRequest) error {
	req.Specifier = source.Specifier(m.project.Abs(path), m.project.Abs(from), styleOf)
	added, err := m.project.AddImport(path, req)
	if err != nil {
		return err
	}
	if added {
		m.touch(m.project.Abs(path))
	}
	return nil
}

// RemoveUnused drops the import bindings among locals that path no longer
// uses and returns the removed names.
func (m *Manager) RemoveUnused(path string, locals []string) ([]string, error) {
	var removed []string
	for _, local := range locals {
		f, err := m.project.Load(path)
		if err != nil {
			return removed, err
		}
		if f.ImportBinding(local) == nil || f.Uses(local) {
			continue
		}
		ok, err := m.project.RemoveImportBinding(path, local)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, local)
			m.log.Debug("removed unused import", zap.String("file", m.project.Rel(path)), zap.String("name", local))
		}
	}
	if len(removed) > 0 {
		m.touch(m.project.Abs(path))
	}
	return removed, nil
}

func (m *Manager) touch(path string) {
	for _, p := range m.updated {
		if p == path {
			return
		}
	}
	m.updated = append(m.updated, path)
}

func usesMember(f *source.File, object, name string) bool {
	for _, t := range f.Tokens {
		if t.Member && t.Object == object && t.Text == name {
			return true
		}
	}
	return false
}
