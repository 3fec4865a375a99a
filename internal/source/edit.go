package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrStructural is returned when a structural edit cannot be applied cleanly.
var ErrStructural = errors.New("structural edit failed")

// Edit replaces the bytes between Start and End with Text.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
}

func applyEdits(content []byte, edits []Edit) ([]byte, error) {
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })
	out := append([]byte(nil), content...)
	prevStart := uint32(len(content)) + 1
	for _, e := range sorted {
		if e.Start > e.End || int(e.End) > len(content) {
			return nil, fmt.Errorf("edit range %d-%d out of bounds", e.Start, e.End)
		}
		if e.End > prevStart {
			return nil, fmt.Errorf("overlapping edits at %d", e.Start)
		}
		out = append(out[:e.Start], append([]byte(e.Text), out[e.End:]...)...)
		prevStart = e.Start
	}
	return out, nil
}

// rewrite applies edits to f and reparses the result. When f parsed cleanly,
// a result with syntax errors is rejected.
func (p *Project) rewrite(f *File, edits []Edit) (*File, error) {
	content, err := applyEdits(f.Content, edits)
	if err != nil {
		return nil, err
	}
	nf, err := Parse(context.Background(), f.Path, content)
	if err != nil {
		return nil, err
	}
	if nf.HasErrors && !f.HasErrors {
		return nil, fmt.Errorf("%w: edit would introduce syntax errors in %s", ErrStructural, p.Rel(f.Path))
	}
	return nf, nil
}

// Rename renames d and every reference to it in one step. include limits
// which files are edited; nil edits every referencing file. Either all files
// are updated or none are.
func (p *Project) Rename(d *Declaration, newName string, include func(path string) bool) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	home, cur, err := p.current(d)
	if err != nil {
		return nil, err
	}
	refs := p.references(home, cur)

	var paths []string
	byPath := make(map[string][]Edit)
	for _, r := range refs {
		if include != nil && !include(r.Path) {
			continue
		}
		text := newName
		if r.Shorthand {
			text = cur.Name + ": " + newName
		}
		if _, ok := byPath[r.Path]; !ok {
			paths = append(paths, r.Path)
		}
		byPath[r.Path] = append(byPath[r.Path], Edit{Start: r.Start, End: r.End, Text: text})
	}

	staged := make([]*File, 0, len(paths))
	for _, path := range paths {
		f, err := p.load(path)
		if err != nil {
			return nil, err
		}
		nf, err := p.rewrite(f, dedupe(byPath[path]))
		if err != nil {
			return nil, err
		}
		staged = append(staged, nf)
	}
	for _, nf := range staged {
		p.commit(nf)
	}
	return paths, nil
}

// Remove deletes d using its syntax node boundaries, including the attached
// doc comment and the export wrapper.
func (p *Project) Remove(d *Declaration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, cur, err := p.current(d)
	if err != nil {
		return err
	}
	start, end := removalRange(f, cur)
	nf, err := p.rewrite(f, []Edit{{Start: start, End: end}})
	if err != nil {
		return err
	}
	if countMatching(nf, cur) >= countMatching(f, cur) {
		return fmt.Errorf("%w: %s still declared after removal", ErrStructural, cur.Name)
	}
	p.commit(nf)
	return nil
}

// RemoveByText deletes a declaration by scanning lines from its keyword to
// the matching closing brace or terminating semicolon. It does not rely on
// the syntax tree and is fragile against nested same-named blocks and
// unusual formatting.
func (p *Project) RemoveByText(path string, kind Kind, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return err
	}
	lines := strings.SplitAfter(string(f.Content), "\n")
	pattern := DeclarationPattern(kind, name)

	first := -1
	for i, line := range lines {
		if pattern.MatchString(line) {
			first = i
			break
		}
	}
	if first < 0 {
		return fmt.Errorf("%w: no line declares %s %s", ErrDeclarationNotFound, kind, name)
	}

	begin := first
	for begin > 0 && isCommentLine(lines[begin-1]) {
		begin--
	}

	depth, opened, last := 0, false, -1
	for j := first; j < len(lines); j++ {
		for _, ch := range lines[j] {
			switch ch {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		trimmed := strings.TrimSpace(lines[j])
		if opened && depth <= 0 {
			last = j
			break
		}
		if !opened && (strings.HasSuffix(trimmed, ";") || (kind.Member() && strings.HasSuffix(trimmed, ","))) {
			last = j
			break
		}
	}
	if last < 0 {
		return fmt.Errorf("%w: unterminated declaration of %s", ErrStructural, name)
	}

	content := strings.Join(lines[:begin], "") + strings.Join(lines[last+1:], "")
	nf, err := Parse(context.Background(), f.Path, []byte(content))
	if err != nil {
		return err
	}
	p.commit(nf)
	return nil
}

// DeclarationPattern matches the line that introduces a declaration.
func DeclarationPattern(kind Kind, name string) *regexp.Regexp {
	n := regexp.QuoteMeta(name)
	switch kind {
	case KindMethod:
		return regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|async|abstract|override|readonly|get|set)\s+)*\*?` + n + `\s*[<(]`)
	case KindProperty:
		return regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|readonly|declare|override)\s+)*` + n + `\s*[?!]?\s*[:=;,]`)
	}
	keywords := map[Kind]string{
		KindFunction:  `function\s*\*?`,
		KindClass:     `class`,
		KindInterface: `interface`,
		KindType:      `type`,
		KindEnum:      `(?:const\s+)?enum`,
		KindVariable:  `(?:const|let|var)`,
	}
	kw, ok := keywords[kind]
	if !ok {
		kw = `\w+`
	}
	return regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(?:async\s+)?` + kw + `\s+` + n + `\b`)
}

// InsertDeclaration appends a top-level declaration to the end of path.
func (p *Project) InsertDeclaration(path, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return err
	}
	content := string(f.Content)
	sep := ""
	switch {
	case content == "" || strings.HasSuffix(content, "\n\n"):
	case strings.HasSuffix(content, "\n"):
		sep = "\n"
	default:
		sep = "\n\n"
	}
	text = strings.TrimRight(text, "\n") + "\n"
	nf, err := p.rewrite(f, []Edit{{Start: uint32(len(f.Content)), End: uint32(len(f.Content)), Text: sep + text}})
	if err != nil {
		return err
	}
	p.commit(nf)
	return nil
}

// DeclarationText returns the canonical text of d: its doc comment, then
// prefix, then the declaration without any export wrapper.
func (p *Project) DeclarationText(d *Declaration, prefix string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, cur, err := p.current(d)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if cur.DocStart < cur.StmtStart && !cur.Shared {
		b.WriteString(f.Text(cur.DocStart, cur.StmtStart))
	}
	b.WriteString(prefix)
	if cur.Shared {
		b.WriteString(cur.Keyword + " " + f.Text(cur.Start, cur.End) + ";")
	} else {
		b.WriteString(f.Text(cur.DeclStart, cur.DeclEnd))
	}
	return b.String(), nil
}

// SetExported makes a top-level declaration exported. Declarators that share
// a statement are exported through a trailing export clause instead.
func (p *Project) SetExported(d *Declaration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, cur, err := p.current(d)
	if err != nil {
		return err
	}
	if cur.Exported || !cur.TopLevel {
		return nil
	}
	var edit Edit
	if cur.Shared {
		end := uint32(len(f.Content))
		edit = Edit{Start: end, End: end, Text: trailingNewline(f) + "export { " + cur.Name + " };\n"}
	} else {
		edit = Edit{Start: cur.StmtStart, End: cur.StmtStart, Text: "export "}
	}
	nf, err := p.rewrite(f, []Edit{edit})
	if err != nil {
		return err
	}
	p.commit(nf)
	return nil
}

// RemoveExportSpecifier drops name from a local `export { ... }` statement,
// removing the statement when name was its only entry.
func (p *Project) RemoveExportSpecifier(path, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load(path)
	if err != nil {
		return false, err
	}
	for _, ec := range f.Exports {
		if ec.Source != "" {
			continue
		}
		var kept []ImportSpec
		for _, s := range ec.Specs {
			if s.Name != name {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(ec.Specs) {
			continue
		}

		var edit Edit
		if len(kept) == 0 {
			start, end := statementRange(f.Content, ec.Start, ec.End)
			edit = Edit{Start: start, End: end}
		} else {
			edit = Edit{Start: ec.Start, End: ec.End, Text: renderExport(kept, ec.Semicolon)}
		}
		nf, err := p.rewrite(f, []Edit{edit})
		if err != nil {
			return false, err
		}
		p.commit(nf)
		return true, nil
	}
	return false, nil
}

func renderExport(specs []ImportSpec, semicolon bool) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, renderSpec(s))
	}
	out := "export { " + strings.Join(parts, ", ") + " }"
	if semicolon {
		out += ";"
	}
	return out
}

// removalRange widens a declaration to the span that should be deleted.
func removalRange(f *File, d *Declaration) (uint32, uint32) {
	c := f.Content
	if d.Shared {
		end := d.End
		i := skipSpaces(c, int(end))
		if i < len(c) && c[i] == ',' {
			return d.Start, uint32(skipSpaces(c, i+1))
		}
		start := int(d.Start)
		j := start - 1
		for j >= 0 && (c[j] == ' ' || c[j] == '\t' || c[j] == '\n' || c[j] == '\r') {
			j--
		}
		if j >= 0 && c[j] == ',' {
			return uint32(j), end
		}
		return d.Start, end
	}
	return statementRange(c, d.DocStart, d.StmtEnd)
}

// statementRange extends [start,end) over the indentation before it and the
// line break after it, collapsing a blank line left behind.
func statementRange(c []byte, start, end uint32) (uint32, uint32) {
	s := int(start)
	for s > 0 && (c[s-1] == ' ' || c[s-1] == '\t') {
		s--
	}
	if s > 0 && c[s-1] != '\n' {
		s = int(start)
	}

	e := skipSpaces(c, int(end))
	if e < len(c) && c[e] == '\r' {
		e++
	}
	if e < len(c) && c[e] == '\n' {
		e++
	} else if e < len(c) {
		e = int(end)
	}

	blankBefore := s == 0 || (s >= 2 && c[s-1] == '\n' && c[s-2] == '\n')
	if blankBefore && e < len(c) && c[e] == '\n' {
		e++
	}
	return uint32(s), uint32(e)
}

func skipSpaces(c []byte, i int) int {
	for i < len(c) && (c[i] == ' ' || c[i] == '\t') {
		i++
	}
	return i
}

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*")
}

func countMatching(f *File, d *Declaration) int {
	n := 0
	for _, c := range f.Find(d.Kind, d.Name) {
		if sameParent(c.Parent, d.Parent) {
			n++
		}
	}
	return n
}

func dedupe(edits []Edit) []Edit {
	seen := make(map[uint32]bool, len(edits))
	out := edits[:0]
	for _, e := range edits {
		if seen[e.Start] {
			continue
		}
		seen[e.Start] = true
		out = append(out, e)
	}
	return out
}

func trailingNewline(f *File) string {
	if len(f.Content) == 0 || f.Content[len(f.Content)-1] == '\n' {
		return ""
	}
	return "\n"
}
