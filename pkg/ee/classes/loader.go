package classes

import (
	stderrors "errors"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/utils"
)

// ErrClassNotFound is matched by every resolution failure
var ErrClassNotFound = stderrors.New("class not found")

// Resolver resolves class names to classes. It fails with an error matching
// ErrClassNotFound when the name is unknown.
type Resolver interface {
	Resolve(name string) (*Class, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(name string) (*Class, error)

// Resolve implements Resolver
func (f ResolverFunc) Resolve(name string) (*Class, error) {
	return f(name)
}

// Loader is a named class registry for one deployment unit. Lookups fall back to
// the parent resolver when the name is not defined locally.
type Loader struct {
	name    string
	parent  Resolver
	classes *utils.BaseRegistry[string, *Class]
}

// NewLoader creates a loader; parent may be nil
func NewLoader(name string, parent Resolver) *Loader {
	l := &Loader{
		name:    name,
		parent:  parent,
		classes: utils.NewBaseRegistry[string, *Class]("class loader "+name, "class name", "class"),
	}
	l.classes.SetValidator(utils.ChainValidators(
		utils.NotEmptyKeyValidator[*Class]("class name"),
		utils.NoDuplicateValidator[string, *Class]("class %s is already defined"),
	))
	return l
}

// Name returns the loader name
func (l *Loader) Name() string {
	return l.name
}

// Define registers classes with this loader
func (l *Loader) Define(classes ...*Class) error {
	for _, c := range classes {
		if err := l.classes.Register(c.Name, c); err != nil {
			return err
		}
		c.loader = l
	}
	return nil
}

// MustDefine is Define that panics on error, for static class tables
func (l *Loader) MustDefine(classes ...*Class) *Loader {
	if err := l.Define(classes...); err != nil {
		panic(err)
	}
	return l
}

// Resolve implements Resolver
func (l *Loader) Resolve(name string) (*Class, error) {
	if c, ok := l.classes.Get(name); ok {
		return c, nil
	}
	if l.parent != nil {
		c, err := l.parent.Resolve(name)
		if err == nil {
			return c, nil
		}
		if !stderrors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	return nil, errors.NewClassNotFoundError(name, l.name, ErrClassNotFound)
}

// Classes returns the names of locally defined classes
func (l *Loader) Classes() []string {
	return utils.SortedKeys(l.classes)
}

func (l *Loader) String() string {
	return l.name
}
