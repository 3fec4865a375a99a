package source

import (
	"fmt"
	"strings"
)

// ImportRequest describes a binding to add to a file's imports.
type ImportRequest struct {
	Specifier string
	Name      string // exported name for named imports
	Local     string // local alias, empty when equal to Name
	Default   bool
	Namespace bool
	TypeOnly  bool
}

func (r ImportRequest) local() string {
	if r.Local != "" {
		return r.Local
	}
	return r.Name
}

// AddImport adds a binding to path. A named binding is merged into an
// existing named import of the same specifier; otherwise a new statement is
// placed after the last import. Quote and semicolon style follow the file.
// It returns false when the binding already exists.
func (p *Project) AddImport(path string, req ImportRequest) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return false, err
	}
	if f.Binds(req.local()) {
		return false, nil
	}

	quote, semicolon := importStyle(f)
	var edit Edit
	merged := false
	if !req.Default && !req.Namespace {
		for _, imp := range f.Imports {
			if imp.Source != req.Specifier || imp.Namespace != "" || imp.SideEffect || imp.TypeOnly != req.TypeOnly {
				continue
			}
			next := *imp
			next.Named = append(append([]ImportSpec(nil), imp.Named...), ImportSpec{Name: req.Name, Alias: aliasFor(req)})
			edit = Edit{Start: imp.Start, End: imp.End, Text: renderImport(&next)}
			merged = true
			break
		}
	}
	if !merged {
		imp := &Import{Source: req.Specifier, TypeOnly: req.TypeOnly, Quote: quote, Semicolon: semicolon}
		switch {
		case req.Default:
			imp.Default = req.local()
		case req.Namespace:
			imp.Namespace = req.local()
		default:
			imp.Named = []ImportSpec{{Name: req.Name, Alias: aliasFor(req)}}
		}
		edit = insertImport(f, renderImport(imp))
	}

	nf, err := p.rewrite(f, []Edit{edit})
	if err != nil {
		return false, err
	}
	p.commit(nf)
	return true, nil
}

// RemoveImportBinding drops the import binding with the given local name,
// removing the whole statement when nothing else is imported by it.
func (p *Project) RemoveImportBinding(path, local string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return false, err
	}
	b := f.ImportBinding(local)
	if b == nil {
		return false, nil
	}

	next := *b.Import
	switch b.Role {
	case RoleImportDefault:
		next.Default = ""
	case RoleImportNamespace:
		next.Namespace = ""
	default:
		next.Named = nil
		for _, s := range b.Import.Named {
			if s.Local() != local {
				next.Named = append(next.Named, s)
			}
		}
	}

	var edit Edit
	if next.Default == "" && next.Namespace == "" && len(next.Named) == 0 {
		start, end := statementRange(f.Content, b.Import.Start, b.Import.End)
		edit = Edit{Start: start, End: end}
	} else {
		edit = Edit{Start: b.Import.Start, End: b.Import.End, Text: renderImport(&next)}
	}
	nf, err := p.rewrite(f, []Edit{edit})
	if err != nil {
		return false, err
	}
	p.commit(nf)
	return true, nil
}

// RetargetImport rewrites the module specifier of the import statement that
// binds local.
func (p *Project) RetargetImport(path, local, specifier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return err
	}
	b := f.ImportBinding(local)
	if b == nil {
		return fmt.Errorf("%s does not import %s", p.Rel(path), local)
	}
	q := string(b.Import.Quote)
	if q == "" || q == "\x00" {
		q = "'"
	}
	nf, err := p.rewrite(f, []Edit{{Start: b.Import.SourceStart, End: b.Import.SourceEnd, Text: q + specifier + q}})
	if err != nil {
		return err
	}
	p.commit(nf)
	return nil
}

func renderImport(imp *Import) string {
	q := string(imp.Quote)
	if imp.Quote == 0 {
		q = "'"
	}
	var b strings.Builder
	b.WriteString("import ")
	if imp.TypeOnly {
		b.WriteString("type ")
	}
	var parts []string
	if imp.Default != "" {
		parts = append(parts, imp.Default)
	}
	if imp.Namespace != "" {
		parts = append(parts, "* as "+imp.Namespace)
	}
	if len(imp.Named) > 0 {
		specs := make([]string, 0, len(imp.Named))
		for _, s := range imp.Named {
			specs = append(specs, renderSpec(s))
		}
		parts = append(parts, "{ "+strings.Join(specs, ", ")+" }")
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(" from " + q + imp.Source + q)
	if imp.Semicolon {
		b.WriteString(";")
	}
	return b.String()
}

func renderSpec(s ImportSpec) string {
	out := s.Name
	if s.TypeOnly {
		out = "type " + out
	}
	if s.Alias != "" && s.Alias != s.Name {
		out += " as " + s.Alias
	}
	return out
}

func aliasFor(r ImportRequest) string {
	if r.Local != "" && r.Local != r.Name {
		return r.Local
	}
	return ""
}

// importStyle infers quote and semicolon conventions from existing imports,
// defaulting to single quotes with semicolons.
func importStyle(f *File) (byte, bool) {
	for _, imp := range f.Imports {
		if imp.Quote == '"' || imp.Quote == '\'' {
			return imp.Quote, imp.Semicolon
		}
	}
	return '\'', true
}

func insertImport(f *File, stmt string) Edit {
	if n := len(f.Imports); n > 0 {
		end := f.Imports[n-1].End
		return Edit{Start: end, End: end, Text: "\n" + stmt}
	}
	pos := uint32(0)
	c := f.Content
	// Keep a shebang or leading directive line in place.
	if len(c) > 2 && c[0] == '#' && c[1] == '!' {
		if i := strings.IndexByte(string(c), '\n'); i >= 0 {
			pos = uint32(i + 1)
		}
	}
	sep := "\n"
	if int(pos) < len(c) && c[pos] != '\n' {
		sep = "\n\n"
	}
	return Edit{Start: pos, End: pos, Text: stmt + sep}
}
