package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/eecore/internal/errors"
)

func TestDirectoryScanner_ScanDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"bank/counter.go":            "package bank",
		"bank/ledger/ledger.go":      "package ledger",
		"bank/ledger/ledger_test.go": "package ledger",
		"audit/logger.go":            "package audit",
		"vendor/x/x.go":              "package x",
		"_scratch/y.go":              "package y",
		"docs/README.md":             "# docs",
	})
	t.Chdir(root)

	abs := func(rel string) string {
		return filepath.Join(root, filepath.FromSlash(rel))
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "recursive",
			patterns: []string{"./..."},
			want:     []string{abs("audit"), abs("bank"), abs("bank/ledger")},
		},
		{
			name:     "bare dots",
			patterns: []string{"..."},
			want:     []string{abs("audit"), abs("bank"), abs("bank/ledger")},
		},
		{
			name:     "single directory does not recurse",
			patterns: []string{"./bank"},
			want:     []string{abs("bank")},
		},
		{
			name:     "subtree",
			patterns: []string{"./bank/..."},
			want:     []string{abs("bank"), abs("bank/ledger")},
		},
		{
			name:     "overlapping patterns are deduplicated",
			patterns: []string{"./bank/...", "./bank", "./bank/ledger"},
			want:     []string{abs("bank"), abs("bank/ledger")},
		},
	}

	scanner := NewDirectoryScanner(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirs, err := scanner.ScanDirectories(tt.patterns)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, dirs)
		})
	}
}

func TestDirectoryScanner_NoGoFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"docs/README.md": "# docs"})
	t.Chdir(root)

	_, err := NewDirectoryScanner(nil).ScanDirectories([]string{"./docs"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.FileSystemErrorCode))
	assert.Contains(t, err.Error(), "no Go files")

	var ce errors.ContainerError
	require.ErrorAs(t, err, &ce)
	require.NotEmpty(t, ce.Suggestions())
	assert.Contains(t, ce.Suggestions()[0], "/...")
}
