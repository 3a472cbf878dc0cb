package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/toyz/eecore/internal/cli"
	"github.com/toyz/eecore/internal/config"
	"github.com/toyz/eecore/internal/utils"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	descriptor  string
	module      string
	application string
	output      string
	verbose     bool
	quiet       bool
}

func usage(w io.Writer, fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(w, "Usage: eecore <command> [options] [directory-paths...]\n\n")
		fmt.Fprintf(w, "Component metadata tool\n")
		fmt.Fprintf(w, "Scans Go sources for //ee:: annotations, merges them with the ee.yaml deployment descriptor and reports the result.\n\n")
		fmt.Fprintf(w, "Commands:\n")
		fmt.Fprintf(w, "  describe    Print the merged component metadata\n")
		fmt.Fprintf(w, "  validate    Check annotations and descriptor, print only problems\n")
		fmt.Fprintf(w, "  version     Print the version\n")
		fmt.Fprintf(w, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nDirectory Patterns:\n")
		fmt.Fprintf(w, "  ./...              Scan current directory and all subdirectories recursively (default)\n")
		fmt.Fprintf(w, "  ./internal/...     Scan internal directory and all its subdirectories\n")
		fmt.Fprintf(w, "  ./bank             Scan only the specific directory (no recursion)\n")
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  eecore describe ./...                        # Describe everything\n")
		fmt.Fprintf(w, "  eecore describe --output yaml ./... > ee.yaml # Start a descriptor from the annotations\n")
		fmt.Fprintf(w, "  eecore validate --descriptor deploy/prod.yaml ./...\n")
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eecore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(stderr, fs)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Configuration file; sources and descriptor default from it")
	fs.StringVar(&opts.descriptor, "descriptor", "", "Deployment descriptor (defaults to the single ee.yaml in the module)")
	fs.StringVar(&opts.module, "module", "", "Module name (defaults to the descriptor, then the go.mod module)")
	fs.StringVar(&opts.application, "application", "", "Application name (defaults to the module name)")
	fs.StringVar(&opts.output, "output", "", "Also print the merged metadata: yaml")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output and detailed error reporting")
	fs.BoolVar(&opts.quiet, "quiet", false, "Only show errors and final results")

	if len(args) == 0 {
		fs.Usage()
		return 2
	}
	command, rest := args[0], args[1:]
	switch command {
	case "-h", "--help", "-help", "help":
		fs.Usage()
		return 0
	case "version":
		fmt.Fprintf(stdout, "eecore %s\n", resolveVersion())
		return 0
	case "describe", "validate":
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", command)
		fs.Usage()
		return 2
	}

	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if opts.output != "" && opts.output != "yaml" {
		fmt.Fprintf(stderr, "Error: unsupported output %q, expected yaml\n", opts.output)
		return 2
	}

	diagnostics := newDiagnostics(opts, command, stdout, stderr)
	reporter := cli.NewDiagnosticReporter(opts.verbose, stderr).WithCommand(command)

	cfg := cli.Config{
		Directories: fs.Args(),
		Descriptor:  opts.descriptor,
		Application: opts.application,
		Module:      opts.module,
		Verbose:     opts.verbose,
	}
	if opts.configPath != "" {
		fileCfg, err := config.Load(opts.configPath)
		if err != nil {
			reporter.ReportError(err)
			return 1
		}
		if len(cfg.Directories) == 0 {
			cfg.Directories = fileCfg.Sources
		}
		if cfg.Descriptor == "" {
			cfg.Descriptor = fileCfg.Descriptor
		}
	}
	if len(cfg.Directories) == 0 {
		cfg.Directories = []string{"./..."}
	}
	diagnostics.Debug("patterns: %s", strings.Join(cfg.Directories, ", "))

	desc, err := cli.NewDescriber(diagnostics).Run(cfg)
	if err != nil {
		reporter.ReportError(err)
		return 1
	}

	if opts.output == "yaml" {
		out, err := cli.RenderYAML(desc.Metadata)
		if err != nil {
			reporter.ReportError(err)
			return 1
		}
		stdout.Write(out)
	}

	if command == "validate" {
		if !opts.quiet {
			fmt.Fprintf(stdout, "eecore: %d components in %s/%s are valid\n",
				len(desc.Metadata.Components), desc.Metadata.Application, desc.Metadata.Module)
		}
		return 0
	}
	diagnostics.Complete("described %d components", len(desc.Metadata.Components))
	return 0
}

// newDiagnostics picks the output level. validate and --output yaml keep
// stdout free of progress output.
func newDiagnostics(opts options, command string, stdout, stderr io.Writer) *utils.DiagnosticSystem {
	var d *utils.DiagnosticSystem
	switch {
	case opts.quiet || command == "validate":
		d = utils.NewQuietDiagnostics()
	case opts.verbose:
		d = utils.NewVerboseDiagnostics()
	default:
		d = utils.NewDiagnosticSystem(utils.DiagnosticInfo)
	}
	if opts.verbose && command == "validate" {
		d = utils.NewVerboseDiagnostics()
	}

	out := stdout
	if opts.output != "" {
		out = stderr
	}
	if out != os.Stdout || stderr != os.Stderr {
		return d.WithOutput(out, stderr)
	}
	return d
}

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
