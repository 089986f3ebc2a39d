// internal/core/validation.go
package core

import (
	"regexp"
	"strings"
	"unicode"
)

// SystemColumn is the identity column every data table carries. It is never part of a template.
const SystemColumn = "id"

// Regular expression for role/permission names (alphanumeric, underscore, dot, hyphen)
var nameValidationRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// IsValidIdentifier checks if a string is a valid role or permission name.
func IsValidIdentifier(name string) bool {
	return nameValidationRegex.MatchString(name) && len(name) > 0 && len(name) <= 100
}

// IsValidColumnName checks a template header cell. Spreadsheet headers may contain spaces and
// punctuation since every identifier is quoted; control characters and the system column are refused.
func IsValidColumnName(name string) bool {
	if name == "" || len(name) > 64 || strings.TrimSpace(name) != name {
		return false
	}
	if strings.EqualFold(name, SystemColumn) {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// QuoteIdent renders name as a double-quoted SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
