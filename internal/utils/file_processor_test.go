package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file %s: %v", name, err)
		}
	}
}

func TestFileProcessor_DefaultGoFileFilter(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"bank.go":      "package bank",
		"bank_test.go": "package bank",
		"ee.yaml":      "module: core",
	})

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read test directory: %v", err)
	}

	goFilter := DefaultGoFileFilter()
	var goFiles []string
	for _, entry := range entries {
		if goFilter(filepath.Join(tmpDir, entry.Name()), entry) {
			goFiles = append(goFiles, entry.Name())
		}
	}
	if len(goFiles) != 1 || goFiles[0] != "bank.go" {
		t.Errorf("Expected only bank.go, got %v", goFiles)
	}
}

func TestFileProcessor_HasGoFiles(t *testing.T) {
	fp := NewFileProcessor()

	withGo := t.TempDir()
	writeTree(t, withGo, map[string]string{"main.go": "package main"})
	onlyTests := t.TempDir()
	writeTree(t, onlyTests, map[string]string{"main_test.go": "package main"})

	tests := []struct {
		name string
		dir  string
		want bool
	}{
		{"go files", withGo, true},
		{"only tests", onlyTests, false},
		{"empty", t.TempDir(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fp.HasGoFiles(tt.dir)
			if err != nil {
				t.Fatalf("HasGoFiles failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasGoFiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileProcessor_FindFiles(t *testing.T) {
	fp := NewFileProcessor()
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"ee.yaml":             "module: root",
		"bank/ee.yaml":        "module: bank",
		"bank/other.yaml":     "",
		"vendor/x/ee.yaml":    "",
		".git/ee.yaml":        "",
		"_examples/a/ee.yaml": "",
	})

	found, err := fp.FindFiles(tmpDir, DescriptorFileFilter("ee.yaml"))
	if err != nil {
		t.Fatalf("FindFiles failed: %v", err)
	}

	want := []string{filepath.Join(tmpDir, "bank", "ee.yaml"), filepath.Join(tmpDir, "ee.yaml")}
	if len(found) != len(want) {
		t.Fatalf("Expected %v, got %v", want, found)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Errorf("found[%d] = %s, want %s", i, found[i], want[i])
		}
	}

	if _, err := fp.FindFiles(filepath.Join(tmpDir, "missing"), DescriptorFileFilter("ee.yaml")); err == nil {
		t.Error("Expected an error for a missing root")
	}
}

func TestFileProcessor_ScanDirectoriesWithGoFiles(t *testing.T) {
	fp := NewFileProcessor()
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"main.go":               "package main",
		"pkg1/service.go":       "package pkg1",
		"pkg2/handler.go":       "package pkg2",
		"pkg2/nested/nested.go": "package nested",
		"testdata/fixture.go":   "package fixture",
		"docs/README.md":        "# docs",
	})

	packageDirs, err := fp.ScanDirectoriesWithGoFiles([]string{tmpDir, filepath.Join(tmpDir, "pkg2")})
	if err != nil {
		t.Fatalf("ScanDirectoriesWithGoFiles failed: %v", err)
	}

	// pkg2 is reachable from both roots but reported once
	expected := map[string]bool{
		tmpDir:                                  true,
		filepath.Join(tmpDir, "pkg1"):           true,
		filepath.Join(tmpDir, "pkg2"):           true,
		filepath.Join(tmpDir, "pkg2", "nested"): true,
	}
	if len(packageDirs) != len(expected) {
		t.Fatalf("Expected %d package directories, got %d: %v", len(expected), len(packageDirs), packageDirs)
	}
	for _, dir := range packageDirs {
		if !expected[dir] {
			t.Errorf("Unexpected package directory %s", dir)
		}
	}
}
