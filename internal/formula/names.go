package formula

import (
	"strings"
	"unicode"
)

// ClassName converts a formula name to its Ruby class name, following
// Homebrew's rules: "shell-menu-runner" -> "ShellMenuRunner",
// "node@16" -> "NodeAT16".
func ClassName(name string) string {
	var sb strings.Builder
	upper := true
	for i, r := range name {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			upper = true
		case r == '@' && i > 0 && i+1 < len(name) && isDigit(name[i+1]):
			sb.WriteString("AT")
		case r == '+':
			sb.WriteByte('x')
		case upper:
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

// NameFromClass converts a Ruby class name back to a kebab-case formula
// name: "ShellMenuRunner" -> "shell-menu-runner", "NodeAT16" -> "node@16".
func NameFromClass(class string) string {
	var sb strings.Builder
	runes := []rune(class)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == 'A' && i+2 < len(runes) && runes[i+1] == 'T' && unicode.IsDigit(runes[i+2]) && i > 0 {
			sb.WriteByte('@')
			i++
			continue
		}
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
