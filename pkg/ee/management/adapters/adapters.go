// Package adapters implements management.Server for echo, gin and fiber.
package adapters

import (
	"fmt"
	"strings"

	"github.com/toyz/eecore/pkg/ee/management"
)

// Engines lists the supported engine names
var Engines = []string{"echo", "gin", "fiber"}

// New returns a default adapter for the named engine
func New(engine string) (management.Server, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "echo":
		return NewDefaultEchoAdapter(), nil
	case "gin":
		return NewDefaultGinAdapter(), nil
	case "fiber":
		return NewDefaultFiberAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown management engine %q, expected one of %s", engine, strings.Join(Engines, ", "))
	}
}

var (
	_ management.Server = (*EchoAdapter)(nil)
	_ management.Server = (*GinAdapter)(nil)
	_ management.Server = (*FiberAdapter)(nil)
)
