// internal/core/validation_test.go
package core

import (
	"strings"
	"testing"
)

func TestIsValidIdentifier(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    bool
		comment string
	}{
		{"valid simple", "admin", true, ""},
		{"valid permission", "data.upload", true, ""},
		{"valid hyphen", "sales-exec", true, ""},
		{"valid underscore", "manage_roles", true, ""},
		{"valid long (100 chars)", strings.Repeat("a", 100), true, ""},
		{"invalid empty", "", false, "empty string"},
		{"invalid space", "my role", false, "contains space"},
		{"invalid quote", "role'--", false, "contains quote"},
		{"invalid too long", strings.Repeat("a", 101), false, "exceeds 100 chars"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsValidIdentifier(tc.input)
			if got != tc.want {
				t.Errorf("IsValidIdentifier(%q) = %v; want %v. %s", tc.input, got, tc.want, tc.comment)
			}
		})
	}
}

func TestIsValidColumnName(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain", "region", true},
		{"spaces inside", "Sales Region", true},
		{"punctuation", "Amount (USD)", true},
		{"quote", `Mr "X"`, true},
		{"empty", "", false},
		{"leading space", " region", false},
		{"system column", "ID", false},
		{"control char", "reg\nion", false},
		{"too long", strings.Repeat("c", 65), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidColumnName(tc.input); got != tc.want {
				t.Errorf("IsValidColumnName(%q) = %v; want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"region", `"region"`},
		{"Sales Region", `"Sales Region"`},
		{`a"b`, `"a""b"`},
		{`x"; DROP TABLE users; --`, `"x""; DROP TABLE users; --"`},
	}

	for _, tc := range testCases {
		if got := QuoteIdent(tc.input); got != tc.want {
			t.Errorf("QuoteIdent(%q) = %s; want %s", tc.input, got, tc.want)
		}
	}
}
