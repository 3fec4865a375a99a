package source

import "regexp"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var reserved = map[string]bool{}

func init() {
	for _, w := range []string{
		"break", "case", "catch", "class", "const", "continue", "debugger", "default",
		"delete", "do", "else", "enum", "export", "extends", "false", "finally", "for",
		"function", "if", "import", "in", "instanceof", "new", "null", "return", "super",
		"switch", "this", "throw", "true", "try", "typeof", "var", "void", "while", "with",
		"yield", "let", "static", "implements", "interface", "package", "private",
		"protected", "public", "await",
	} {
		reserved[w] = true
	}
}

// IsValidIdentifier reports whether name can be used as a binding name.
func IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name) && !reserved[name]
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool {
	return reserved[name]
}
