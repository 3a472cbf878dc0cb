package utils

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
)

// FileReader reads source files, descriptors and go.mod files. Parsed Go
// files and raw contents are cached until the file changes on disk.
type FileReader struct {
	fileSet  *token.FileSet
	asts     *FileCache[*ast.File]
	contents *FileCache[string]
}

// NewFileReader creates a reader with empty caches
func NewFileReader() *FileReader {
	return &FileReader{
		fileSet:  token.NewFileSet(),
		asts:     NewFileCache[*ast.File](),
		contents: NewFileCache[string](),
	}
}

// ParseGoFile parses a Go file with its comments, which carry the annotations
func (fr *FileReader) ParseGoFile(filePath string) (*ast.File, error) {
	cleanPath, err := cleanFilePath(filePath)
	if err != nil {
		return nil, err
	}
	file, err := fr.asts.Load(cleanPath, func(path string) (*ast.File, error) {
		return parser.ParseFile(fr.fileSet, path, nil, parser.ParseComments)
	})
	if err != nil {
		return nil, WrapParseError("Go file "+filepath.Base(cleanPath), err)
	}
	return file, nil
}

// ParseGoSource parses in-memory Go source; the result is not cached
func (fr *FileReader) ParseGoSource(filename, source string) (*ast.File, error) {
	file, err := parser.ParseFile(fr.fileSet, filename, source, parser.ParseComments)
	if err != nil {
		return nil, WrapParseError("Go source", err)
	}
	return file, nil
}

// ReadFile returns the contents of filePath
func (fr *FileReader) ReadFile(filePath string) (string, error) {
	cleanPath, err := cleanFilePath(filePath)
	if err != nil {
		return "", err
	}
	content, err := fr.contents.Load(cleanPath, func(path string) (string, error) {
		b, err := os.ReadFile(path)
		return string(b), err
	})
	if err != nil {
		return "", WrapLoadError(filepath.Base(cleanPath), err)
	}
	return content, nil
}

// GetFileSet returns the file set positions of parsed files refer to
func (fr *FileReader) GetFileSet() *token.FileSet {
	return fr.fileSet
}

// Invalidate forgets everything cached for filePath
func (fr *FileReader) Invalidate(filePath string) {
	cleanPath := filepath.Clean(filePath)
	fr.asts.Invalidate(cleanPath)
	fr.contents.Invalidate(cleanPath)
}

// CacheStats returns how many parsed files and raw contents are cached
func (fr *FileReader) CacheStats() (asts, contents int) {
	return fr.asts.Len(), fr.contents.Len()
}

func cleanFilePath(filePath string) (string, error) {
	if err := NotEmpty("file path")(filePath); err != nil {
		return "", err
	}
	return filepath.Clean(filePath), nil
}
