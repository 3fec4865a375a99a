package source

// Kind classifies a declaration.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
	KindEnum      Kind = "enum"
	KindVariable  Kind = "variable"
	KindMethod    Kind = "method"
	KindProperty  Kind = "property"
)

// Kinds lists every declaration kind in a stable order.
var Kinds = []Kind{KindFunction, KindClass, KindInterface, KindType, KindEnum, KindVariable, KindMethod, KindProperty}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Member reports whether declarations of this kind live inside a class or interface.
func (k Kind) Member() bool {
	return k == KindMethod || k == KindProperty
}

// Parent identifies the class or interface enclosing a member declaration.
type Parent struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Declaration is a named construct found in a source file. Offsets are byte
// offsets into the file content the declaration was extracted from and go
// stale after any edit to that file.
type Declaration struct {
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Path      string  `json:"path"`
	Parent    *Parent `json:"parent,omitempty"`
	Keyword   string  `json:"keyword,omitempty"` // function, class, const, ...
	Signature string  `json:"signature"`
	Exported  bool    `json:"exported"`
	Default   bool    `json:"default,omitempty"`
	TopLevel  bool    `json:"top_level"`
	Line      int     `json:"line"`

	NameStart uint32 `json:"-"`
	NameEnd   uint32 `json:"-"`
	Start     uint32 `json:"-"` // declaration node; the declarator for variables
	End       uint32 `json:"-"`
	StmtStart uint32 `json:"-"` // outermost statement, including an export wrapper
	StmtEnd   uint32 `json:"-"`
	DeclStart uint32 `json:"-"` // statement without the export wrapper
	DeclEnd   uint32 `json:"-"`
	DocStart  uint32 `json:"-"` // start of the attached doc comment, StmtStart if none

	// Shared is set for variable declarators that share a statement with siblings.
	Shared bool `json:"-"`
}

// Import is one import statement.
type Import struct {
	Source      string       `json:"source"`
	Default     string       `json:"default,omitempty"`
	Namespace   string       `json:"namespace,omitempty"`
	Named       []ImportSpec `json:"named,omitempty"`
	TypeOnly    bool         `json:"type_only,omitempty"`
	Start       uint32       `json:"-"`
	End         uint32       `json:"-"`
	Quote       byte         `json:"-"`
	Semicolon   bool         `json:"-"`
	SideEffect  bool         `json:"-"`
	SourceStart uint32       `json:"-"`
	SourceEnd   uint32       `json:"-"`
}

// ImportSpec is a single `name as alias` entry of a named import or export.
type ImportSpec struct {
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"`
	TypeOnly  bool   `json:"type_only,omitempty"`
	NameStart uint32 `json:"-"`
	NameEnd   uint32 `json:"-"`
}

// Local is the binding the specifier introduces in the importing file.
func (s ImportSpec) Local() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// Bindings returns every local name the import introduces.
func (imp *Import) Bindings() []string {
	var out []string
	if imp.Default != "" {
		out = append(out, imp.Default)
	}
	if imp.Namespace != "" {
		out = append(out, imp.Namespace)
	}
	for _, s := range imp.Named {
		out = append(out, s.Local())
	}
	return out
}

// ExportClause is an `export { a, b as c } [from '...']` statement.
type ExportClause struct {
	Source    string       `json:"source,omitempty"`
	Specs     []ImportSpec `json:"specs"`
	Start     uint32       `json:"-"`
	End       uint32       `json:"-"`
	Semicolon bool         `json:"-"`
}

// Token is an identifier occurrence in a file.
type Token struct {
	Text   string
	Type   string // identifier, type_identifier, property_identifier, shorthand_property_identifier
	Start  uint32
	End    uint32
	Line   int
	Column int
	// Member is set for the property part of a member expression; Object holds
	// the receiver text when the receiver is a plain identifier.
	Member bool
	Object string
	Role   Role
}

// Role records where an identifier sits inside import and export syntax.
type Role int

const (
	RoleNone Role = iota
	RoleImportName
	RoleImportAlias
	RoleImportDefault
	RoleImportNamespace
	RoleExportName
	RoleExportAlias
)

// InImport reports whether the token belongs to an import statement.
func (t Token) InImport() bool {
	return t.Role == RoleImportName || t.Role == RoleImportAlias || t.Role == RoleImportDefault || t.Role == RoleImportNamespace
}

// Reference is a resolved occurrence of a declaration's name.
type Reference struct {
	Path       string `json:"path"`
	Start      uint32 `json:"start"`
	End        uint32 `json:"end"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Definition bool   `json:"definition,omitempty"`
	Shorthand  bool   `json:"shorthand,omitempty"`
}
