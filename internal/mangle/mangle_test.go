package mangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol(t *testing.T) {
	cases := []struct {
		name    string
		relPath string
		symbol  string
		want    string
	}{
		{"main function is unmangled", "main.gc", "main", "main"},
		{"other main.gc symbol is still mangled", "main.gc", "helper", "main..helper"},
		{"nested path replaces separators", "utils/math.gc", "square", "utils..math..square"},
		{"main in a nested file is mangled", "pkg/main.gc", "main", "pkg..main..main"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Symbol(c.relPath, c.symbol))
		})
	}
}
