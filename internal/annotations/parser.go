// Package annotations parses and validates the //ee:: source annotations that
// declare components, their views, interceptors, lifecycle callbacks and
// injected references.
//
// An annotation is a line comment of the form
//
//	//ee::<type> [positional[,more]] [-Param=value[,value]] [-Flag]
//
// The type selects a schema; the schema decides which positional values are
// accepted, the type of each parameter and where the annotation may appear.
package annotations

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParserEngine interface defines the core parsing functionality
type ParserEngine interface {
	ParseAnnotation(comment string, location SourceLocation) (*ParsedAnnotation, error)
	ValidateAnnotation(annotation *ParsedAnnotation) error
	CheckTarget(annotation *ParsedAnnotation, target Target) error
}

type annotationAST struct {
	Type       string      `parser:"Comment Prefix @Word"`
	Positional []*listAST  `parser:"@@*"`
	Params     []*paramAST `parser:"@@*"`
}

type listAST struct {
	Items []string `parser:"( @Word | @String ) ( Comma ( @Word | @String ) )*"`
}

type paramAST struct {
	Flag  string   `parser:"@Flag"`
	Value *listAST `parser:"( Equals @@ )?"`
}

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//`},
	{Name: "Prefix", Pattern: `ee::`},
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Flag", Pattern: `-[A-Za-z][A-Za-z0-9_]*`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Word", Pattern: `[^\s=,"]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type parser struct {
	grammar   *participle.Parser[annotationAST]
	registry  AnnotationRegistry
	validator SchemaValidator
}

// NewParser returns a parser validating against registry. A nil registry uses
// the built-in schemas.
func NewParser(registry AnnotationRegistry) ParserEngine {
	if registry == nil {
		registry = NewBuiltinRegistry()
	}
	return &parser{
		grammar: participle.MustBuild[annotationAST](
			participle.Lexer(annotationLexer),
			participle.Elide("Whitespace"),
			participle.Unquote("String"),
			participle.UseLookahead(2),
		),
		registry:  registry,
		validator: NewValidator(),
	}
}

// IsAnnotation reports whether comment is an //ee:: annotation. Whitespace
// between the slashes and the prefix is allowed.
func IsAnnotation(comment string) bool {
	input := strings.TrimSpace(comment)
	if !strings.HasPrefix(input, "//") {
		return false
	}
	return strings.HasPrefix(strings.TrimLeftFunc(input[2:], unicode.IsSpace), "ee::")
}

func (p *parser) ParseAnnotation(comment string, location SourceLocation) (*ParsedAnnotation, error) {
	if !IsAnnotation(comment) {
		return nil, NewSyntaxErrorWithContext("annotation must start with the '//ee::' prefix", location, comment)
	}

	ast, err := p.grammar.ParseString(location.File, strings.TrimSpace(comment))
	if err != nil {
		return nil, p.syntaxError(err, comment, location)
	}

	annotationType, err := ParseAnnotationType(ast.Type)
	if err != nil {
		return nil, NewSyntaxErrorWithContext(err.Error(), location, comment)
	}
	schema, err := p.registry.GetSchema(annotationType)
	if err != nil {
		return nil, NewSchemaErrorWithContext(err.Error(), location, annotationType)
	}

	annotation := &ParsedAnnotation{
		Type:       annotationType,
		Parameters: make(map[string]any),
		Location:   location,
		Raw:        comment,
	}

	if len(ast.Positional) > len(schema.Positional) {
		return nil, NewSyntaxErrorWithContext(
			fmt.Sprintf("too many positional values for %s: got %d, accepts %d", annotationType, len(ast.Positional), len(schema.Positional)),
			location, comment)
	}
	for i, list := range ast.Positional {
		annotation.Parameters[schema.Positional[i]] = list.value()
	}

	for _, param := range ast.Params {
		name := strings.TrimPrefix(param.Flag, "-")
		if _, dup := annotation.Parameters[name]; dup {
			return nil, NewSyntaxErrorWithContext(fmt.Sprintf("parameter -%s given twice", name), location, comment)
		}
		if param.Value != nil {
			annotation.Parameters[name] = param.Value.value()
			continue
		}
		// a bare -Flag means true, or the default value of a non-boolean parameter
		spec, known := schema.Parameters[name]
		if known && spec.Type != BoolType && spec.DefaultValue != nil {
			annotation.Parameters[name] = spec.DefaultValue
		} else {
			annotation.Parameters[name] = true
		}
	}

	if err := p.ValidateAnnotation(annotation); err != nil {
		return nil, err
	}
	return annotation, nil
}

func (l *listAST) value() any {
	if len(l.Items) == 1 {
		return l.Items[0]
	}
	return append([]string(nil), l.Items...)
}

func (p *parser) syntaxError(err error, comment string, location SourceLocation) error {
	var perr participle.Error
	if !errors.As(err, &perr) {
		return NewSyntaxErrorWithContext(err.Error(), location, comment)
	}
	loc := location
	loc.Column += perr.Position().Column - 1
	return NewSyntaxErrorWithContext(perr.Message(), loc, comment)
}

// ValidateAnnotation applies schema defaults, converts parameter values and
// validates the result
func (p *parser) ValidateAnnotation(annotation *ParsedAnnotation) error {
	schema, err := p.registry.GetSchema(annotation.Type)
	if err != nil {
		return NewSchemaErrorWithContext(err.Error(), annotation.Location, annotation.Type)
	}
	if err := p.validator.ApplyDefaults(annotation, schema); err != nil {
		return err
	}
	if err := p.validator.TransformParameters(annotation, schema); err != nil {
		return err
	}
	return p.validator.Validate(annotation, schema)
}

// CheckTarget rejects an annotation attached to a declaration its schema does not allow
func (p *parser) CheckTarget(annotation *ParsedAnnotation, target Target) error {
	schema, err := p.registry.GetSchema(annotation.Type)
	if err != nil {
		return NewSchemaErrorWithContext(err.Error(), annotation.Location, annotation.Type)
	}
	if schema.Targets&target == 0 {
		return NewSchemaErrorWithContext(
			fmt.Sprintf("//ee::%s is not allowed on a %s", annotation.Type, target),
			annotation.Location, annotation.Type)
	}
	return nil
}
