package source

// References enumerates every occurrence of d across the loaded files,
// including its own name. Accuracy depends on every file that might refer to
// d having been loaded first.
func (p *Project) References(d *Declaration) ([]Reference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	home, cur, err := p.current(d)
	if err != nil {
		return nil, err
	}
	return p.references(home, cur), nil
}

func (p *Project) references(home *File, d *Declaration) []Reference {
	if d.Kind.Member() {
		return p.memberReferences(home, d)
	}

	var refs []Reference
	for _, t := range home.Tokens {
		if t.Text != d.Name || !t.IsValueReference() || inReexport(home, t.Start) {
			continue
		}
		refs = append(refs, referenceAt(home.Path, t, t.Start == d.NameStart))
	}

	for _, f := range p.loadedFiles() {
		if f.Path == home.Path {
			continue
		}
		refs = append(refs, p.importedReferences(f, home.Path, d.Name)...)
	}
	return refs
}

// importedReferences finds uses of name in f that come from an import of
// (or re-export from) the file at target.
func (p *Project) importedReferences(f *File, target, name string) []Reference {
	var refs []Reference
	for _, imp := range f.Imports {
		if p.resolve(f.Path, imp.Source) != target {
			continue
		}
		for _, s := range imp.Named {
			if s.Name != name {
				continue
			}
			refs = append(refs, specReference(f, s))
			if s.Alias != "" {
				continue
			}
			for _, t := range f.Tokens {
				if t.Text == name && t.IsValueReference() && !inReexport(f, t.Start) {
					refs = append(refs, referenceAt(f.Path, t, false))
				}
			}
		}
		if imp.Namespace != "" {
			for _, t := range f.Tokens {
				if t.Member && t.Object == imp.Namespace && t.Text == name {
					refs = append(refs, referenceAt(f.Path, t, false))
				}
			}
		}
	}
	for _, ec := range f.Exports {
		if ec.Source == "" || p.resolve(f.Path, ec.Source) != target {
			continue
		}
		for _, s := range ec.Specs {
			if s.Name == name {
				refs = append(refs, specReference(f, s))
			}
		}
	}
	return refs
}

// memberReferences approximates member uses by property name in the declaring
// file and in files importing the enclosing class or interface.
func (p *Project) memberReferences(home *File, d *Declaration) []Reference {
	refs := []Reference{{
		Path:       home.Path,
		Start:      d.NameStart,
		End:        d.NameEnd,
		Line:       d.Line,
		Definition: true,
	}}
	scan := []*File{home}
	for _, f := range p.loadedFiles() {
		if f.Path == home.Path {
			continue
		}
		for _, imp := range f.Imports {
			if p.resolve(f.Path, imp.Source) != home.Path {
				continue
			}
			if imp.Namespace != "" || hasNamed(imp, d.Parent.Name) {
				scan = append(scan, f)
				break
			}
		}
	}
	for _, f := range scan {
		for _, t := range f.Tokens {
			if t.Member && t.Text == d.Name && !(f.Path == home.Path && t.Start == d.NameStart) {
				refs = append(refs, referenceAt(f.Path, t, false))
			}
		}
	}
	return refs
}

// ExternalReferences returns references to d located outside its own file.
func (p *Project) ExternalReferences(d *Declaration) ([]Reference, error) {
	refs, err := p.References(d)
	if err != nil {
		return nil, err
	}
	var out []Reference
	for _, r := range refs {
		if r.Path != d.Path {
			out = append(out, r)
		}
	}
	return out, nil
}

func referenceAt(path string, t Token, definition bool) Reference {
	return Reference{
		Path:       path,
		Start:      t.Start,
		End:        t.End,
		Line:       t.Line,
		Column:     t.Column,
		Definition: definition,
		Shorthand:  t.Type == "shorthand_property_identifier",
	}
}

func specReference(f *File, s ImportSpec) Reference {
	r := Reference{Path: f.Path, Start: s.NameStart, End: s.NameEnd}
	for _, t := range f.Tokens {
		if t.Start == s.NameStart {
			r.Line, r.Column = t.Line, t.Column
			break
		}
	}
	return r
}

func inReexport(f *File, pos uint32) bool {
	for _, ec := range f.Exports {
		if ec.Source != "" && pos >= ec.Start && pos < ec.End {
			return true
		}
	}
	return false
}

func hasNamed(imp *Import, name string) bool {
	for _, s := range imp.Named {
		if s.Name == name {
			return true
		}
	}
	return false
}
