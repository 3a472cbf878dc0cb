package utils

import (
	"fmt"
	"path"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// GoModule describes the Go module a source tree belongs to
type GoModule struct {
	Path      string // module path from the module directive
	Dir       string // directory holding go.mod
	GoVersion string
}

// Name returns the last element of the module path without a major version
// suffix: github.com/acme/bank/v2 gives bank
func (m GoModule) Name() string {
	prefix, _, ok := module.SplitPathVersion(m.Path)
	if !ok || prefix == "" {
		prefix = m.Path
	}
	return path.Base(prefix)
}

// GoModParser reads go.mod files through a caching FileReader
type GoModParser struct {
	fileReader *FileReader
}

// NewGoModParser creates a go.mod parser; a nil reader gets a fresh one
func NewGoModParser(fileReader *FileReader) *GoModParser {
	if fileReader == nil {
		fileReader = NewFileReader()
	}
	return &GoModParser{fileReader: fileReader}
}

// Parse reads the go.mod file at goModPath
func (p *GoModParser) Parse(goModPath string) (GoModule, error) {
	cleanPath := filepath.Clean(goModPath)
	if filepath.Base(cleanPath) != "go.mod" {
		return GoModule{}, fmt.Errorf("file is not a go.mod file: %s", goModPath)
	}

	content, err := p.fileReader.ReadFile(cleanPath)
	if err != nil {
		return GoModule{}, WrapLoadError("go.mod", err)
	}

	modFile, err := modfile.ParseLax(cleanPath, []byte(content), nil)
	if err != nil {
		return GoModule{}, WrapParseError(cleanPath, err)
	}
	if modFile.Module == nil {
		return GoModule{}, fmt.Errorf("no module declaration found in %s", cleanPath)
	}

	mod := GoModule{Path: modFile.Module.Mod.Path, Dir: filepath.Dir(cleanPath)}
	if modFile.Go != nil {
		mod.GoVersion = modFile.Go.Version
	}
	return mod, nil
}

// ParseModuleName extracts the module path from a go.mod file
func (p *GoModParser) ParseModuleName(goModPath string) (string, error) {
	mod, err := p.Parse(goModPath)
	if err != nil {
		return "", err
	}
	return mod.Path, nil
}

// FindGoModFile searches for go.mod starting at startDir and walking up
func (p *GoModParser) FindGoModFile(startDir string) (string, error) {
	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", WrapProcessError(fmt.Sprintf("path resolution %s", startDir), err)
	}

	for {
		goModPath := filepath.Join(currentDir, "go.mod")
		if content, err := p.fileReader.ReadFile(goModPath); err == nil && content != "" {
			return goModPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return "", fmt.Errorf("go.mod file not found above %s", startDir)
}

// FindModule locates and parses the go.mod governing startDir
func (p *GoModParser) FindModule(startDir string) (GoModule, error) {
	goModPath, err := p.FindGoModFile(startDir)
	if err != nil {
		return GoModule{}, err
	}
	return p.Parse(goModPath)
}
