package cli

import (
	"fmt"
	"path/filepath"

	"github.com/toyz/eecore/internal/utils"
)

// ModuleResolver maps source directories to the Go module they live in
type ModuleResolver struct {
	parser *utils.GoModParser
}

// NewModuleResolver creates a resolver reading go.mod through reader
func NewModuleResolver(reader *utils.FileReader) *ModuleResolver {
	return &ModuleResolver{parser: utils.NewGoModParser(reader)}
}

// Resolve finds the module governing startDir. ok is false when there is no
// go.mod above it; that is not an error since the descriptor may name the
// module instead.
func (r *ModuleResolver) Resolve(startDir string) (mod utils.GoModule, ok bool, err error) {
	goModPath, err := r.parser.FindGoModFile(startDir)
	if err != nil {
		return utils.GoModule{}, false, nil
	}
	mod, err = r.parser.Parse(goModPath)
	if err != nil {
		return utils.GoModule{}, false, err
	}
	return mod, true, nil
}

// ResolveModuleName returns custom when set, otherwise the name of the module
// governing startDir
func (r *ModuleResolver) ResolveModuleName(custom, startDir string) (string, error) {
	if custom != "" {
		return custom, nil
	}
	mod, ok, err := r.Resolve(startDir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no go.mod found above %s (consider using --module flag)", startDir)
	}
	return mod.Name(), nil
}

// BuildPackagePath builds the import path of packageDir inside mod
func (r *ModuleResolver) BuildPackagePath(mod utils.GoModule, packageDir string) (string, error) {
	absPackageDir, err := filepath.Abs(packageDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve package directory: %w", err)
	}
	relPath, err := filepath.Rel(mod.Dir, absPackageDir)
	if err != nil {
		return "", fmt.Errorf("failed to calculate relative path: %w", err)
	}

	importPath := filepath.ToSlash(relPath)
	if importPath == "." {
		return mod.Path, nil
	}
	if importPath == ".." || len(importPath) > 2 && importPath[:3] == "../" {
		return "", fmt.Errorf("package directory %s is outside module %s", packageDir, mod.Path)
	}
	return mod.Path + "/" + importPath, nil
}
