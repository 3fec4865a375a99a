package refactor

import (
	"context"
	"path/filepath"

	"reshape/internal/operation"
	"reshape/internal/source"

	"go.uber.org/zap"
)

// Mover relocates a top-level declaration into another file.
type Mover struct {
	env Env
}

// carried is a declaration moved together with the selected one.
type carried struct {
	decl *source.Declaration
	text string
}

func (m *Mover) Execute(_ context.Context, op operation.Operation) *operation.Result {
	res := operation.NewResult(op)
	d, ok := resolve(m.env, res)
	if !ok {
		return res
	}
	p := m.env.Project

	if !d.TopLevel {
		return res.Fail(operation.Errorf(operation.KindUnsupportedSymbolKind, "only top-level declarations can be moved, %s is a %s member", d.Name, d.Kind))
	}
	srcPath := d.Path
	target := p.Abs(op.TargetFilePath)
	if target == srcPath {
		return res.Fail(operation.Errorf(operation.KindValidation, "%s is already in %s", d.Name, p.Rel(target)))
	}

	// A new target lives in memory until the engine saves the project.
	if m.env.FS.IsFile(target) {
		if _, err := p.Reload(target); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot load "+p.Rel(target)))
		}
	} else {
		if _, err := p.Create(target); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot create "+p.Rel(target)))
		}
		m.env.Log.Debug("created move target", zap.String("path", p.Rel(target)))
	}
	if err := m.env.Finder.MoveConflict(target, d); err != nil {
		return res.Fail(err)
	}

	src, err := p.Load(srcPath)
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot load "+p.Rel(srcPath)))
	}
	exported := m.env.Finder.IsExported(d)
	prefix := ""
	if d.Default {
		prefix = "default "
	}

	deps := m.privateTypeDependencies(src, d)
	moving := map[string]bool{d.Name: true}
	ranges := [][2]uint32{{d.Start, d.End}}
	for _, c := range deps {
		moving[c.decl.Name] = true
		ranges = append(ranges, [2]uint32{c.decl.Start, c.decl.End})
	}

	// Identifiers the moved code needs and how the target will get them.
	var (
		requests  []source.ImportRequest
		fromSrc   []string
		srcLocals []string
	)
	for _, name := range identifiersIn(src, ranges) {
		if moving[name] {
			continue
		}
		if b := src.ImportBinding(name); b != nil {
			srcLocals = append(srcLocals, name)
			req, ok := m.retarget(srcPath, target, b, name)
			if ok {
				requests = append(requests, req)
				res.Dependencies = append(res.Dependencies, name)
			}
			continue
		}
		if src.TopLevel(name) != nil {
			fromSrc = append(fromSrc, name)
			res.Dependencies = append(res.Dependencies, name)
		}
	}

	text, err := p.DeclarationText(d, "")
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot extract "+d.Name))
	}
	exportedText, err := p.DeclarationText(d, "export "+prefix)
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot extract "+d.Name))
	}

	// Take the declaration and its private types out of the source.
	if err := p.Remove(d); err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot remove "+d.Name+" from source"))
	}
	for _, c := range deps {
		if err := p.Remove(c.decl); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot remove "+c.decl.Name+" from source"))
		}
	}
	if _, err := p.RemoveExportSpecifier(srcPath, d.Name); err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "failed to update export list"))
	}
	res.AddAffected(srcPath, target)

	src, err = p.Load(srcPath)
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot load "+p.Rel(srcPath)))
	}
	stillUsed := src.Uses(d.Name)

	if exported || stillUsed {
		text = exportedText
	}
	for _, c := range deps {
		if err := p.InsertDeclaration(target, c.text); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot insert "+c.decl.Name))
		}
	}
	if err := p.InsertDeclaration(target, text); err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot insert "+d.Name))
	}

	for _, req := range requests {
		if _, err := p.AddImport(target, req); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot import "+bindingName(req)+" into target"))
		}
	}
	mgr := m.env.imports()
	style := relativeStyle(src)
	for _, name := range fromSrc {
		cur, err := p.Load(srcPath)
		if err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot load "+p.Rel(srcPath)))
		}
		if dep := cur.TopLevel(name); dep != nil && !m.env.Finder.IsExported(dep) {
			if err := p.SetExported(dep); err != nil {
				return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot export "+name))
			}
			res.Warn("exported %s from %s for the moved code", name, p.Rel(srcPath))
		}
		if err := mgr.Import(target, name, srcPath, style); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot import "+name+" into target"))
		}
	}

	if stillUsed {
		importBack := mgr.Import
		if d.Default {
			importBack = mgr.ImportDefault
		}
		if err := importBack(srcPath, d.Name, target, style); err != nil {
			return res.Fail(operation.Wrap(operation.KindInternal, err, "cannot import "+d.Name+" back into source"))
		}
	}
	if _, err := mgr.RemoveUnused(srcPath, srcLocals); err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "source import cleanup failed"))
	}

	warnings, err := mgr.UpdateImportsAfterMove(d.Name, srcPath, target, d.Default)
	for _, w := range warnings {
		res.Warn("%s", w)
	}
	if err != nil {
		return res.Fail(operation.Wrap(operation.KindInternal, err, "failed to update importers"))
	}
	res.AddAffected(mgr.UpdatedFiles()...)
	res.Success = true

	m.env.Log.Info("moved symbol",
		zap.String("symbol", d.Name),
		zap.String("from", p.Rel(srcPath)),
		zap.String("to", p.Rel(target)),
		zap.Int("carried", len(deps)),
		zap.Int("files", len(res.AffectedFiles)))
	return res
}

// privateTypeDependencies returns the unexported interface, type and enum
// declarations of src that only d refers to.
func (m *Mover) privateTypeDependencies(src *source.File, d *source.Declaration) []carried {
	var out []carried
	for _, name := range src.IdentifiersIn(d.Start, d.End) {
		dep := src.TopLevel(name)
		if dep == nil || dep.Name == d.Name || m.env.Finder.IsExported(dep) {
			continue
		}
		if dep.Kind != source.KindInterface && dep.Kind != source.KindType && dep.Kind != source.KindEnum {
			continue
		}
		// Uses outside the moved declaration and the dependency itself keep it in place.
		if src.Uses(name, [2]uint32{d.Start, d.End}, [2]uint32{dep.Start, dep.End}) {
			continue
		}
		text, err := m.env.Project.DeclarationText(dep, "")
		if err != nil {
			continue
		}
		out = append(out, carried{decl: dep, text: text})
	}
	return out
}

// retarget builds the import the target needs for a binding the source got
// through an import. Relative specifiers are recomputed from the target.
func (m *Mover) retarget(srcPath, target string, b *source.Binding, local string) (source.ImportRequest, bool) {
	spec := b.Import.Source
	if source.IsRelativeSpecifier(spec) {
		resolved := m.env.Project.ResolveSpecifier(srcPath, spec)
		if resolved == target {
			return source.ImportRequest{}, false
		}
		if resolved == "" {
			resolved = filepath.Join(filepath.Dir(srcPath), filepath.FromSlash(spec))
		}
		spec = source.Specifier(target, resolved, spec)
	}
	req := source.ImportRequest{Specifier: spec, Local: local, TypeOnly: b.Import.TypeOnly}
	switch b.Role {
	case source.RoleImportDefault:
		req.Default = true
	case source.RoleImportNamespace:
		req.Namespace = true
	default:
		req.Name = b.Spec.Name
		req.TypeOnly = req.TypeOnly || b.Spec.TypeOnly
	}
	return req, true
}

// relativeStyle returns a relative specifier from f whose extension
// convention new imports should follow.
func relativeStyle(f *source.File) string {
	for _, imp := range f.Imports {
		if source.IsRelativeSpecifier(imp.Source) {
			return imp.Source
		}
	}
	return ""
}

func identifiersIn(f *source.File, ranges [][2]uint32) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ranges {
		for _, name := range f.IdentifiersIn(r[0], r[1]) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func bindingName(req source.ImportRequest) string {
	if req.Local != "" {
		return req.Local
	}
	return req.Name
}
