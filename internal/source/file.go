package source

// Find returns declarations matching kind and name. A nil parent matches
// any enclosing declaration.
func (f *File) Find(kind Kind, name string) []*Declaration {
	var out []*Declaration
	for _, d := range f.Decls {
		if d.Kind == kind && d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// OfKind returns every declaration of the given kind.
func (f *File) OfKind(kind Kind) []*Declaration {
	var out []*Declaration
	for _, d := range f.Decls {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// TopLevel returns the top-level declaration named name, if any.
func (f *File) TopLevel(name string) *Declaration {
	for _, d := range f.Decls {
		if d.TopLevel && d.Name == name {
			return d
		}
	}
	return nil
}

// Binding describes how a local name is brought into scope by an import.
type Binding struct {
	Import *Import
	Spec   *ImportSpec // nil for default and namespace imports
	Role   Role
}

// ImportBinding finds the import that binds local, if any.
func (f *File) ImportBinding(local string) *Binding {
	for _, imp := range f.Imports {
		if imp.Default == local {
			return &Binding{Import: imp, Role: RoleImportDefault}
		}
		if imp.Namespace == local {
			return &Binding{Import: imp, Role: RoleImportNamespace}
		}
		for i := range imp.Named {
			if imp.Named[i].Local() == local {
				return &Binding{Import: imp, Spec: &imp.Named[i], Role: RoleImportName}
			}
		}
	}
	return nil
}

// Binds reports whether name resolves inside the file, either to a top-level
// declaration or to an import binding.
func (f *File) Binds(name string) bool {
	return f.TopLevel(name) != nil || f.ImportBinding(name) != nil
}

// IsValueReference reports whether a token can refer to a top-level binding.
func (t Token) IsValueReference() bool {
	if t.Member || t.InImport() || t.Role == RoleExportAlias {
		return false
	}
	return t.Type == "identifier" || t.Type == "type_identifier" || t.Type == "shorthand_property_identifier"
}

// Uses reports whether name is referenced outside import statements and
// outside the given byte ranges.
func (f *File) Uses(name string, exclude ...[2]uint32) bool {
	for _, t := range f.Tokens {
		if t.Text != name || !t.IsValueReference() {
			continue
		}
		if inRanges(t.Start, exclude) {
			continue
		}
		return true
	}
	return false
}

// IdentifiersIn returns the distinct names referenced between start and end.
func (f *File) IdentifiersIn(start, end uint32) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range f.Tokens {
		if t.Start < start || t.End > end || !t.IsValueReference() {
			continue
		}
		if !seen[t.Text] {
			seen[t.Text] = true
			out = append(out, t.Text)
		}
	}
	return out
}

// Text returns the content between two offsets.
func (f *File) Text(start, end uint32) string {
	return string(f.Content[start:end])
}

func inRanges(pos uint32, ranges [][2]uint32) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}
