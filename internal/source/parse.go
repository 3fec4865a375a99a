package source

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// File is a parsed source file. The syntax tree is indexed into plain
// declarations, imports and identifier tokens at parse time and then
// released, so a File is an immutable snapshot of one content version.
type File struct {
	Path      string
	Lang      *Language
	Content   []byte
	Decls     []*Declaration
	Imports   []*Import
	Exports   []*ExportClause
	Tokens    []Token
	HasErrors bool
}

// Parse builds a File from content.
func Parse(ctx context.Context, path string, content []byte) (*File, error) {
	lang, err := LanguageFor(path)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.get())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	x := &extraction{
		src:  content,
		file: &File{Path: path, Lang: lang, Content: content, HasErrors: root.HasError()},
	}
	x.topLevel(root)
	x.walk(root, RoleNone)
	return x.file, nil
}

type extraction struct {
	src  []byte
	file *File
}

func (x *extraction) topLevel(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			if imp := x.importStatement(child); imp != nil {
				x.file.Imports = append(x.file.Imports, imp)
			}
		case "export_statement":
			x.exportStatement(child)
		case "comment":
		default:
			x.declaration(child, child, false, false)
		}
	}
}

func (x *extraction) exportStatement(stmt *sitter.Node) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		x.declaration(stmt, decl, true, hasChildType(stmt, "default"))
		return
	}

	clause := firstNamedChildOfType(stmt, "export_clause")
	if clause == nil {
		return
	}
	ec := &ExportClause{
		Start:     stmt.StartByte(),
		End:       stmt.EndByte(),
		Semicolon: x.src[stmt.EndByte()-1] == ';',
	}
	if srcNode := stmt.ChildByFieldName("source"); srcNode != nil {
		ec.Source = unquote(srcNode.Content(x.src))
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		if s, ok := x.specifier(spec); ok {
			ec.Specs = append(ec.Specs, s)
		}
	}
	x.file.Exports = append(x.file.Exports, ec)
}

func (x *extraction) declaration(stmt, node *sitter.Node, exported, isDefault bool) {
	var kind Kind
	keyword := ""
	switch node.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		kind, keyword = KindFunction, "function"
	case "class_declaration", "abstract_class_declaration":
		kind, keyword = KindClass, "class"
	case "interface_declaration":
		kind, keyword = KindInterface, "interface"
	case "type_alias_declaration":
		kind, keyword = KindType, "type"
	case "enum_declaration":
		kind, keyword = KindEnum, "enum"
	case "lexical_declaration", "variable_declaration":
		x.variables(stmt, node, exported)
		return
	default:
		return
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	d := &Declaration{
		Name:      nameNode.Content(x.src),
		Kind:      kind,
		Path:      x.file.Path,
		Keyword:   keyword,
		Signature: x.signature(node),
		Exported:  exported,
		Default:   isDefault,
		TopLevel:  true,
		Line:      int(stmt.StartPoint().Row) + 1,
		NameStart: nameNode.StartByte(),
		NameEnd:   nameNode.EndByte(),
		Start:     node.StartByte(),
		End:       node.EndByte(),
		StmtStart: stmt.StartByte(),
		StmtEnd:   stmt.EndByte(),
		DeclStart: node.StartByte(),
		DeclEnd:   node.EndByte(),
		DocStart:  docStart(stmt, x.src),
	}
	x.file.Decls = append(x.file.Decls, d)

	if kind == KindClass || kind == KindInterface {
		if body := node.ChildByFieldName("body"); body != nil {
			x.members(d, body)
		}
	}
}

func (x *extraction) variables(stmt, node *sitter.Node, exported bool) {
	keyword := "var"
	if node.Type() == "lexical_declaration" && node.ChildCount() > 0 {
		keyword = node.Child(0).Type()
	}

	var declarators []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == "variable_declarator" {
			declarators = append(declarators, c)
		}
	}

	for _, decl := range declarators {
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		x.file.Decls = append(x.file.Decls, &Declaration{
			Name:      nameNode.Content(x.src),
			Kind:      KindVariable,
			Path:      x.file.Path,
			Keyword:   keyword,
			Signature: firstLine(keyword + " " + decl.Content(x.src)),
			Exported:  exported,
			TopLevel:  true,
			Line:      int(decl.StartPoint().Row) + 1,
			NameStart: nameNode.StartByte(),
			NameEnd:   nameNode.EndByte(),
			Start:     decl.StartByte(),
			End:       decl.EndByte(),
			StmtStart: stmt.StartByte(),
			StmtEnd:   stmt.EndByte(),
			DeclStart: node.StartByte(),
			DeclEnd:   node.EndByte(),
			DocStart:  docStart(stmt, x.src),
			Shared:    len(declarators) > 1,
		})
	}
}

func (x *extraction) members(parent *Declaration, body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		var kind Kind
		switch m.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			kind = KindMethod
		case "public_field_definition", "field_definition", "property_signature":
			kind = KindProperty
		default:
			continue
		}

		nameNode := m.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = m.ChildByFieldName("property")
		}
		if nameNode == nil || nameNode.Type() == "computed_property_name" {
			continue
		}

		end := m.EndByte()
		if next := m.NextSibling(); next != nil && !next.IsNamed() && (next.Type() == ";" || next.Type() == ",") {
			end = next.EndByte()
		}

		x.file.Decls = append(x.file.Decls, &Declaration{
			Name:      nameNode.Content(x.src),
			Kind:      kind,
			Path:      x.file.Path,
			Parent:    &Parent{Name: parent.Name, Kind: parent.Kind},
			Signature: x.signature(m),
			Exported:  parent.Exported,
			Line:      int(m.StartPoint().Row) + 1,
			NameStart: nameNode.StartByte(),
			NameEnd:   nameNode.EndByte(),
			Start:     m.StartByte(),
			End:       m.EndByte(),
			StmtStart: m.StartByte(),
			StmtEnd:   end,
			DeclStart: m.StartByte(),
			DeclEnd:   end,
			DocStart:  docStart(m, x.src),
		})
	}
}

func (x *extraction) importStatement(stmt *sitter.Node) *Import {
	srcNode := stmt.ChildByFieldName("source")
	if srcNode == nil {
		srcNode = firstNamedChildOfType(stmt, "string")
	}
	if srcNode == nil {
		return nil
	}
	raw := srcNode.Content(x.src)
	imp := &Import{
		Source:      unquote(raw),
		Start:       stmt.StartByte(),
		End:         stmt.EndByte(),
		Semicolon:   x.src[stmt.EndByte()-1] == ';',
		SourceStart: srcNode.StartByte(),
		SourceEnd:   srcNode.EndByte(),
		SideEffect:  true,
	}
	if len(raw) > 0 {
		imp.Quote = raw[0]
	}

	for i := 0; i < int(stmt.ChildCount()); i++ {
		c := stmt.Child(i)
		switch c.Type() {
		case "type":
			imp.TypeOnly = true
		case "import_clause":
			imp.SideEffect = false
			x.importClause(imp, c)
		}
	}
	return imp
}

func (x *extraction) importClause(imp *Import, clause *sitter.Node) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			imp.Default = c.Content(x.src)
		case "namespace_import":
			if id := firstNamedChildOfType(c, "identifier"); id != nil {
				imp.Namespace = id.Content(x.src)
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				if s, ok := x.specifier(spec); ok {
					imp.Named = append(imp.Named, s)
				}
			}
		}
	}
}

func (x *extraction) specifier(spec *sitter.Node) (ImportSpec, bool) {
	name := spec.ChildByFieldName("name")
	if name == nil {
		return ImportSpec{}, false
	}
	s := ImportSpec{
		Name:      name.Content(x.src),
		NameStart: name.StartByte(),
		NameEnd:   name.EndByte(),
		TypeOnly:  hasChildType(spec, "type"),
	}
	if alias := spec.ChildByFieldName("alias"); alias != nil {
		s.Alias = alias.Content(x.src)
	}
	return s, true
}

// walk collects identifier tokens. role is applied to identifiers that are
// direct syntactic parts of import or export specifiers.
func (x *extraction) walk(n *sitter.Node, role Role) {
	switch n.Type() {
	case "identifier", "type_identifier", "property_identifier", "shorthand_property_identifier":
		x.token(n, role)
		return
	case "import_specifier", "export_specifier":
		nameRole, aliasRole := RoleImportName, RoleImportAlias
		if n.Type() == "export_specifier" {
			nameRole, aliasRole = RoleExportName, RoleExportAlias
		}
		name := n.ChildByFieldName("name")
		alias := n.ChildByFieldName("alias")
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			r := RoleNone
			if sameNode(c, name) {
				r = nameRole
			} else if sameNode(c, alias) {
				r = aliasRole
			}
			x.walk(c, r)
		}
		return
	case "namespace_import":
		role = RoleImportNamespace
	case "import_clause":
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() == "identifier" {
				x.walk(c, RoleImportDefault)
			} else {
				x.walk(c, RoleNone)
			}
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		x.walk(n.Child(i), role)
	}
}

func (x *extraction) token(n *sitter.Node, role Role) {
	tok := Token{
		Text:   n.Content(x.src),
		Type:   n.Type(),
		Start:  n.StartByte(),
		End:    n.EndByte(),
		Line:   int(n.StartPoint().Row) + 1,
		Column: int(n.StartPoint().Column) + 1,
		Role:   role,
	}
	if tok.Type == "property_identifier" {
		if p := n.Parent(); p != nil && p.Type() == "member_expression" && sameNode(p.ChildByFieldName("property"), n) {
			tok.Member = true
			if obj := p.ChildByFieldName("object"); obj != nil && (obj.Type() == "identifier" || obj.Type() == "this") {
				tok.Object = obj.Content(x.src)
			}
		}
	}
	x.file.Tokens = append(x.file.Tokens, tok)
}

func (x *extraction) signature(node *sitter.Node) string {
	if body := node.ChildByFieldName("body"); body != nil {
		return strings.TrimSpace(string(x.src[node.StartByte():body.StartByte()]))
	}
	return firstLine(node.Content(x.src))
}

// docStart walks back over comments attached to node. A blank line, a comment
// trailing earlier code on the same line, or a tooling directive ends the doc block.
func docStart(node *sitter.Node, src []byte) uint32 {
	start := node.StartByte()
	cur := node
	for {
		prev := cur.PrevSibling()
		if prev == nil || prev.Type() != "comment" {
			break
		}
		if cur.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		if before := prev.PrevSibling(); before != nil && before.Type() != "comment" && before.EndPoint().Row == prev.StartPoint().Row {
			break
		}
		if isDirective(prev.Content(src)) {
			break
		}
		start = prev.StartByte()
		cur = prev
	}
	return start
}

func isDirective(comment string) bool {
	c := strings.TrimSpace(strings.TrimLeft(comment, "/*! "))
	for _, prefix := range []string{"eslint", "@ts-", "prettier-ignore", "istanbul", "#!"} {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return strings.HasPrefix(comment, "/*!")
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func hasChildType(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

func firstNamedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
