package domain

import "testing"

func TestParseDeclaredType(t *testing.T) {
	testCases := []struct {
		input string
		want  DeclaredType
	}{
		{"INT", TypeInt},
		{"INTEGER", TypeInt},
		{"DATE", TypeDate},
		{"FLOAT", TypeFloat},
		{"DOUBLE", TypeFloat},
		{"TEXT", TypeText},
		{"VARCHAR", TypeText},
		{"", TypeText},
	}

	for _, tc := range testCases {
		if got := ParseDeclaredType(tc.input); got != tc.want {
			t.Errorf("ParseDeclaredType(%q) = %q; want %q", tc.input, got, tc.want)
		}
	}
}
