package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/utils"
)

// DirectoryScanner expands source patterns into package directories
type DirectoryScanner struct {
	fileProcessor *utils.FileProcessor
}

// NewDirectoryScanner creates a new directory scanner
func NewDirectoryScanner(fp *utils.FileProcessor) *DirectoryScanner {
	if fp == nil {
		fp = utils.NewFileProcessor()
	}
	return &DirectoryScanner{fileProcessor: fp}
}

// ScanDirectories returns the package directories named by patterns. A
// pattern ending in "/..." includes every package below its base; any other
// pattern names exactly one directory, which must hold Go files.
func (s *DirectoryScanner) ScanDirectories(patterns []string) ([]string, error) {
	var recursive, single []string

	for _, pattern := range patterns {
		base, isRecursive := strings.CutSuffix(pattern, "/...")
		if pattern == "..." {
			base, isRecursive = ".", true
		}
		if base == "" {
			base = "."
		}
		cleanPath, err := filepath.Abs(base)
		if err != nil {
			return nil, errors.WrapWithOperation("process", fmt.Sprintf("path resolution %s", base), err)
		}
		if isRecursive {
			recursive = append(recursive, cleanPath)
		} else {
			single = append(single, cleanPath)
		}
	}

	dirs, err := s.fileProcessor.ScanDirectoriesWithGoFiles(recursive)
	if err != nil {
		return nil, errors.Wrap(errors.FileSystemErrorCode, err.Error(), err)
	}

	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[d] = true
	}
	for _, dir := range single {
		if seen[dir] {
			continue
		}
		ok, err := s.fileProcessor.HasGoFiles(dir)
		if err != nil {
			return nil, errors.WrapFileSystemError("read", dir, err)
		}
		if !ok {
			return nil, errors.Newf(errors.FileSystemErrorCode, "no Go files in %s", dir).
				WithSuggestion("Use " + filepath.ToSlash(dir) + "/... to scan the packages below it")
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs, nil
}
