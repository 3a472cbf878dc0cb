package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/toyz/eecore/internal/descriptor"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/merge"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/internal/scanner"
	"github.com/toyz/eecore/internal/utils"
)

// Describer runs the metadata pipeline: scan the sources for annotations,
// load the deployment descriptor and merge the two
type Describer struct {
	dirs           *DirectoryScanner
	moduleResolver *ModuleResolver
	scanner        *scanner.Scanner
	descriptors    *descriptor.Loader
	files          *utils.FileProcessor
	diagnostics    *utils.DiagnosticSystem
}

// Description is the outcome of a successful run
type Description struct {
	Metadata   *metadata.ModuleMetadata
	Packages   []*metadata.PackageMetadata
	Descriptor string // empty when no descriptor was used
	Duration   time.Duration
}

// NewDescriber creates a describer reporting through diagnostics. A nil
// diagnostics reports nothing.
func NewDescriber(diagnostics *utils.DiagnosticSystem) *Describer {
	if diagnostics == nil {
		diagnostics = utils.NewDiagnosticSystem(utils.DiagnosticSilent)
	}
	reader := utils.NewFileReader()
	files := utils.NewFileProcessorWithReader(reader)
	return &Describer{
		dirs:           NewDirectoryScanner(files),
		moduleResolver: NewModuleResolver(reader),
		scanner:        scanner.New(reader),
		descriptors:    descriptor.NewLoader(reader),
		files:          files,
		diagnostics:    diagnostics,
	}
}

// Run executes the pipeline for cfg. Errors from every package are collected
// before giving up, so one run reports every broken annotation.
func (d *Describer) Run(cfg Config) (*Description, error) {
	start := time.Now()
	d.diagnostics.Header("describing %v", cfg.Directories)

	mod, haveMod, err := d.moduleResolver.Resolve(".")
	if err != nil {
		return nil, errors.Wrap(errors.ConfigurationErrorCode, err.Error(), err).
			WithSuggestion("Fix go.mod or name the module with --module")
	}
	if haveMod {
		d.diagnostics.Verbose("module %s in %s", mod.Path, mod.Dir)
	}

	packageDirs, err := d.dirs.ScanDirectories(cfg.Directories)
	if err != nil {
		return nil, err
	}
	if len(packageDirs) == 0 {
		return nil, errors.Newf(errors.FileSystemErrorCode, "no Go packages found in %v", cfg.Directories).
			WithSuggestion("Use ./... to scan every package below the current directory")
	}

	d.diagnostics.Phase("Scanning")
	d.diagnostics.Indent()
	annotated := &metadata.ModuleMetadata{}
	if haveMod {
		annotated.Application = mod.Name()
		annotated.Module = mod.Name()
	}
	var packages []*metadata.PackageMetadata
	var errs *errors.MultipleErrors
	for _, dir := range packageDirs {
		pkg, err := d.scanner.ScanDirectory(dir)
		if err != nil {
			collect(&errs, err)
			continue
		}
		if len(pkg.Components) == 0 && len(pkg.Classes) == 0 {
			d.diagnostics.Debug("%s: nothing annotated", dir)
			continue
		}
		if haveMod {
			if importPath, err := d.moduleResolver.BuildPackagePath(mod, dir); err == nil {
				pkg.PackagePath = importPath
			}
		}
		d.diagnostics.PhaseItem("%s (%d components, %d classes)", pkg.PackagePath, len(pkg.Components), len(pkg.Classes))
		packages = append(packages, pkg)
		annotated.AddPackage(pkg)
	}
	d.diagnostics.Unindent()
	if errs != nil {
		return nil, errs
	}

	descriptorPath := cfg.Descriptor
	if descriptorPath == "" {
		root := "."
		if haveMod {
			root = mod.Dir
		}
		descriptorPath, err = d.findDescriptor(root)
		if err != nil {
			return nil, err
		}
	}

	var desc *metadata.ModuleMetadata
	if descriptorPath != "" {
		d.diagnostics.Phase("Descriptor")
		desc, err = d.descriptors.Load(descriptorPath)
		if err != nil {
			return nil, err
		}
		d.diagnostics.Indent()
		d.diagnostics.PhaseItem("%s (%d components, %d classes)", descriptorPath, len(desc.Components), len(desc.Classes))
		d.diagnostics.Unindent()
	}

	merged, err := merge.Merge(annotated, desc)
	if err != nil {
		return nil, err
	}
	if cfg.Application != "" {
		merged.Application = cfg.Application
	}
	if cfg.Module != "" {
		merged.Module = cfg.Module
	}
	if merged.Module == "" {
		return nil, errors.New(errors.ConfigurationErrorCode, "the module has no name").
			WithSuggestion("Run inside a Go module, set module: in the descriptor or pass --module")
	}
	if merged.Application == "" {
		merged.Application = merged.Module
	}

	out := &Description{
		Metadata:   merged,
		Packages:   packages,
		Descriptor: descriptorPath,
		Duration:   time.Since(start),
	}
	d.report(out)
	return out, nil
}

// findDescriptor looks for a single ee.yaml below root
func (d *Describer) findDescriptor(root string) (string, error) {
	found, err := d.files.FindFiles(root, utils.DescriptorFileFilter(DefaultDescriptorName))
	if err != nil {
		return "", errors.WrapFileSystemError("search", root, err)
	}
	switch len(found) {
	case 0:
		d.diagnostics.Verbose("no %s below %s, using annotations only", DefaultDescriptorName, root)
		return "", nil
	case 1:
		return found[0], nil
	default:
		return "", errors.Newf(errors.ConfigurationErrorCode, "found %d deployment descriptors below %s", len(found), root).
			WithContext("descriptors", found).
			WithSuggestion("Pick one with --descriptor")
	}
}

func (d *Describer) report(desc *Description) {
	md := desc.Metadata

	d.diagnostics.Section(fmt.Sprintf("%s/%s", md.Application, md.Module))
	byKind := make(map[string][]string)
	for _, c := range md.Components {
		byKind[c.Kind] = append(byKind[c.Kind], c.Name)
	}
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		d.diagnostics.List("%s: %v", kind, byKind[kind])
	}
	if len(md.DefaultInterceptors) > 0 {
		d.diagnostics.List("default interceptors: %v", md.DefaultInterceptors)
	}

	stats := map[string]interface{}{
		"packages":   len(desc.Packages),
		"components": len(md.Components),
		"classes":    len(md.Classes),
		"duration":   desc.Duration.Round(time.Millisecond),
	}
	if desc.Descriptor != "" {
		stats["descriptor"] = relative(desc.Descriptor)
	}
	d.diagnostics.Summary("Summary", stats)
}

// RenderYAML renders merged metadata in descriptor form, so the output of
// describe can serve as a starting descriptor
func RenderYAML(md *metadata.ModuleMetadata) ([]byte, error) {
	out, err := yaml.Marshal(md)
	if err != nil {
		return nil, errors.Wrap(errors.UnknownErrorCode, fmt.Sprintf("render metadata: %v", err), err)
	}
	return out, nil
}

func collect(errs **errors.MultipleErrors, err error) {
	for _, e := range Flatten(err) {
		if ce, ok := e.(errors.ContainerError); ok {
			errors.AddToMultiple(errs, ce)
			continue
		}
		errors.AddToMultiple(errs, errors.Wrap(errors.UnknownErrorCode, e.Error(), e))
	}
}

func relative(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil {
		return rel
	}
	return path
}
