package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/toyz/eecore/internal/errors"
)

// DiagnosticReporter prints container errors with their locations,
// suggestions and some help for the kind of failure
type DiagnosticReporter struct {
	verbose bool
	out     io.Writer
	command string
}

// NewDiagnosticReporter creates a reporter writing to out, or stderr when nil
func NewDiagnosticReporter(verbose bool, out io.Writer) *DiagnosticReporter {
	if out == nil {
		out = os.Stderr
	}
	return &DiagnosticReporter{verbose: verbose, out: out, command: "describe"}
}

// WithCommand names the command in error headers
func (r *DiagnosticReporter) WithCommand(command string) *DiagnosticReporter {
	r.command = command
	return r
}

// ReportWarning prints a one-line warning followed by its suggestions
func (r *DiagnosticReporter) ReportWarning(message string, suggestions ...string) {
	orange := color.New(color.FgYellow, color.Bold)
	orange.Fprint(r.out, "! ")
	fmt.Fprintf(r.out, "%s\n", message)
	for _, s := range suggestions {
		fmt.Fprintf(r.out, "  hint: %s\n", s)
	}
}

// ReportError prints err. Aggregated errors are flattened and listed one by
// one, grouped by code.
func (r *DiagnosticReporter) ReportError(err error) {
	problems := Flatten(err)

	title := fmt.Sprintf("eecore %s failed", r.command)
	if len(problems) > 1 {
		title = fmt.Sprintf("%s (%d problems)", title, len(problems))
	}
	fmt.Fprintf(r.out, "\nERROR: %s\n%s\n\n", title, strings.Repeat("=", len(title)+7))

	codes := make(map[errors.ErrorCode]bool)
	for i, p := range problems {
		if len(problems) > 1 {
			fmt.Fprintf(r.out, "%d) ", i+1)
		}
		if ce, ok := p.(errors.ContainerError); ok {
			r.reportContainerError(ce)
			codes[ce.ErrorCode()] = true
		} else {
			fmt.Fprintf(r.out, "Message: %s\n\n", p.Error())
		}
	}

	sorted := make([]errors.ErrorCode, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, code := range sorted {
		r.printAdditionalHelp(code)
	}
	if !r.verbose {
		fmt.Fprintf(r.out, "Run with --verbose to see underlying causes.\n")
	}
	fmt.Fprintln(r.out)
}

// Flatten expands MultipleErrors, nested ones included, into their members
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var multi *errors.MultipleErrors
	if m, ok := err.(*errors.MultipleErrors); ok {
		multi = m
	} else if !stderrors.As(err, &multi) || multi == nil {
		return []error{err}
	}
	var out []error
	for _, e := range multi.Errors {
		out = append(out, Flatten(e)...)
	}
	return out
}

func (r *DiagnosticReporter) reportContainerError(err errors.ContainerError) {
	fmt.Fprintf(r.out, "Type: %s\n", describeCode(err.ErrorCode()))

	loc := err.Location()
	message := err.Error()
	if !loc.IsEmpty() {
		message = strings.TrimPrefix(message, loc.String()+": ")
		fmt.Fprintf(r.out, "Location: %s\n", loc)
	}
	fmt.Fprintf(r.out, "Message: %s\n", message)

	if r.verbose {
		if ctx := err.Context(); len(ctx) > 0 {
			r.printContext(ctx)
		}
		r.printCauses(err.Unwrap())
	}
	if s := err.Suggestions(); len(s) > 0 {
		r.printSuggestions(s)
	}
	fmt.Fprintln(r.out)
}

func describeCode(code errors.ErrorCode) string {
	if code == errors.SchemaErrorCode {
		return "Annotation Schema Error"
	}
	return code.String()
}

// printContext prints context keys in sorted order, snake_case as Title Case
func (r *DiagnosticReporter) printContext(context map[string]interface{}) {
	keys := make([]string, 0, len(context))
	for key := range context {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(r.out, "Context:\n")
	for _, key := range keys {
		parts := strings.Split(key, "_")
		for i, part := range parts {
			if len(part) > 0 {
				parts[i] = strings.ToUpper(part[:1]) + part[1:]
			}
		}
		fmt.Fprintf(r.out, "   %s: %v\n", strings.Join(parts, " "), context[key])
	}
}

func (r *DiagnosticReporter) printCauses(err error) {
	level := 1
	for err != nil {
		if level == 1 {
			fmt.Fprintf(r.out, "Caused by:\n")
		}
		fmt.Fprintf(r.out, "   %d. %s\n", level, err.Error())
		err = stderrors.Unwrap(err)
		level++
	}
}

func (r *DiagnosticReporter) printSuggestions(suggestions []string) {
	fmt.Fprintf(r.out, "Suggestions:\n")
	for i, suggestion := range suggestions {
		lines := strings.Split(suggestion, "\n")
		fmt.Fprintf(r.out, "   %d. %s\n", i+1, lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(r.out, "      %s\n", line)
			}
		}
	}
}

func (r *DiagnosticReporter) printAdditionalHelp(code errors.ErrorCode) {
	switch code {
	case errors.SyntaxErrorCode, errors.SchemaErrorCode:
		fmt.Fprintf(r.out, "Annotation Syntax Help:\n")
		fmt.Fprintf(r.out, "  - Annotations start with //ee:: directly above the declaration\n")
		fmt.Fprintf(r.out, "  - Flags follow the name, e.g. //ee::stateless Counter -MaxSize=4\n\n")
	case errors.ValidationErrorCode:
		fmt.Fprintf(r.out, "Metadata Rules:\n")
		fmt.Fprintf(r.out, "  - Pools belong to stateless components, startup to singletons\n")
		fmt.Fprintf(r.out, "  - Session synchronization callbacks need a stateful component\n")
		fmt.Fprintf(r.out, "  - A descriptor entry may not change the kind of an annotated component\n\n")
	case errors.FileSystemErrorCode:
		fmt.Fprintf(r.out, "Paths:\n")
		fmt.Fprintf(r.out, "  - Source patterns are directories, ./... scans recursively\n")
		fmt.Fprintf(r.out, "  - Each directory must hold a single Go package\n\n")
	}
}
