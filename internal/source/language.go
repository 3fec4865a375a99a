package source

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language describes a grammar the source model can parse.
type Language struct {
	Name string
	get  func() *sitter.Language
}

var (
	langTypeScript = &Language{Name: "typescript", get: typescript.GetLanguage}
	langTSX        = &Language{Name: "tsx", get: tsx.GetLanguage}
	langJavaScript = &Language{Name: "javascript", get: javascript.GetLanguage}
)

var languagesByExt = map[string]*Language{
	".ts":  langTypeScript,
	".mts": langTypeScript,
	".cts": langTypeScript,
	".tsx": langTSX,
	".js":  langJavaScript,
	".jsx": langJavaScript,
	".mjs": langJavaScript,
	".cjs": langJavaScript,
}

// ResolutionExtensions is the order in which extensionless module
// specifiers are resolved to files.
var ResolutionExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

// LanguageFor picks the grammar for a file based on its extension.
func LanguageFor(path string) (*Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languagesByExt[ext]; ok {
		return lang, nil
	}
	return nil, fmt.Errorf("unsupported source file: %s", path)
}

// Supported reports whether path has an extension the model can parse.
func Supported(path string) bool {
	_, ok := languagesByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsTypeScript reports whether the language carries type syntax.
func (l *Language) IsTypeScript() bool {
	return l == langTypeScript || l == langTSX
}
