package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CASH_DATA", "/srv/cash")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tilde only", in: "~", want: home},
		{name: "tilde prefix", in: "~/books/cash.db", want: filepath.Join(home, "books", "cash.db")},
		{name: "env var", in: "$CASH_DATA/cash.db", want: "/srv/cash/cash.db"},
		{name: "default database", in: DefaultDatabasePath, want: home + "/.local/share/cash/cash.db"},
		{name: "absolute", in: "/tmp/cash.db", want: "/tmp/cash.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
