package annotations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every documented example must parse and be accepted on the schema's target.
func TestBuiltinSchemaExamplesParse(t *testing.T) {
	p := NewParser(nil)
	for _, schema := range GetBuiltinSchemas() {
		require.NotEmpty(t, schema.Examples, schema.Type.String())
		for _, example := range schema.Examples {
			t.Run(example, func(t *testing.T) {
				got, err := p.ParseAnnotation(example, testLocation)
				require.NoError(t, err)
				assert.Equal(t, schema.Type, got.Type)
				for _, target := range []Target{TypeTarget, MethodTarget, FieldTarget} {
					if schema.Targets&target != 0 {
						assert.NoError(t, p.CheckTarget(got, target))
					}
				}
			})
		}
	}
}

func TestComponentAnnotations(t *testing.T) {
	for _, schema := range GetBuiltinSchemas() {
		if !schema.Type.IsComponent() {
			continue
		}
		assert.Equal(t, TypeTarget, schema.Targets, schema.Type.String())
		assert.Equal(t, []string{"Name"}, schema.Positional, schema.Type.String())
		assert.Contains(t, schema.Parameters, "Views")
	}
	assert.False(t, InjectAnnotation.IsComponent())
}

func TestAnnotationTypeRoundTrip(t *testing.T) {
	for _, schema := range GetBuiltinSchemas() {
		parsed, err := ParseAnnotationType(strings.ToUpper(schema.Type.String()))
		require.NoError(t, err)
		assert.Equal(t, schema.Type, parsed)
	}
	_, err := ParseAnnotationType("route")
	assert.Error(t, err)
	assert.Equal(t, "unknown", AnnotationType(99).String())
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "type|method", (TypeTarget | MethodTarget).String())
	assert.Equal(t, "field", FieldTarget.String())
	assert.Equal(t, "nothing", Target(0).String())
}
