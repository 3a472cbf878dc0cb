package classes

import "fmt"

// Constructor creates a new zero-configured instance of a class
type Constructor func() (any, error)

// FieldSetter assigns value to a named field of target. A nil value clears the field.
type FieldSetter func(target any, value any) error

// Field is an injectable field declared on a Class
type Field struct {
	Name           string
	DeclaringClass *Class
	Set            FieldSetter
}

// Class describes a loadable type: its name, superclass, no-arg constructor and
// declared members. Classes are defined once and treated as read-only afterwards.
type Class struct {
	Name        string
	Super       *Class
	Interface   bool
	constructor Constructor
	loader      *Loader
	methods     []*Method
	methodIndex map[MethodIdentifier]*Method
	fields      map[string]*Field
}

// NewClass creates a class with an optional no-arg constructor
func NewClass(name string, constructor Constructor) *Class {
	return &Class{
		Name:        name,
		constructor: constructor,
		methodIndex: make(map[MethodIdentifier]*Method),
		fields:      make(map[string]*Field),
	}
}

// NewInterface creates a class describing an interface; it has no constructor.
// Views are described with interfaces.
func NewInterface(name string) *Class {
	c := NewClass(name, nil)
	c.Interface = true
	return c
}

// Extends sets the superclass and returns the class for chaining
func (c *Class) Extends(super *Class) *Class {
	c.Super = super
	return c
}

// Declare adds a public method
func (c *Class) Declare(id MethodIdentifier, fn MethodFunc) *Class {
	c.declare(id, fn, false)
	return c
}

// DeclarePrivate adds a private method. Private methods are not inherited and
// never count as overridden.
func (c *Class) DeclarePrivate(id MethodIdentifier, fn MethodFunc) *Class {
	c.declare(id, fn, true)
	return c
}

func (c *Class) declare(id MethodIdentifier, fn MethodFunc, private bool) {
	m := &Method{ID: id, DeclaringClass: c, Private: private, Func: fn}
	if _, exists := c.methodIndex[id]; exists {
		for i, existing := range c.methods {
			if existing.ID == id {
				c.methods[i] = m
			}
		}
	} else {
		c.methods = append(c.methods, m)
	}
	c.methodIndex[id] = m
}

// DeclareField adds an injectable field
func (c *Class) DeclareField(name string, set FieldSetter) *Class {
	c.fields[name] = &Field{Name: name, DeclaringClass: c, Set: set}
	return c
}

// Loader returns the loader that defined this class, or nil
func (c *Class) Loader() *Loader {
	return c.loader
}

// HasDefaultConstructor reports whether the class can be instantiated without arguments
func (c *Class) HasDefaultConstructor() bool {
	return c.constructor != nil
}

// NewInstance invokes the no-arg constructor
func (c *Class) NewInstance() (any, error) {
	if c.constructor == nil {
		return nil, fmt.Errorf("class %s has no default constructor", c.Name)
	}
	return c.constructor()
}

// DeclaredMethods returns the methods declared directly on this class, in declaration order
func (c *Class) DeclaredMethods() []*Method {
	out := make([]*Method, len(c.methods))
	copy(out, c.methods)
	return out
}

// DeclaredMethod returns a method declared directly on this class
func (c *Class) DeclaredMethod(id MethodIdentifier) (*Method, bool) {
	m, ok := c.methodIndex[id]
	return m, ok
}

// Method resolves id the way a virtual call would: the most derived public
// declaration wins, and a private declaration is visible only on its own class.
func (c *Class) Method(id MethodIdentifier) (*Method, bool) {
	if m, ok := c.methodIndex[id]; ok {
		return m, true
	}
	for super := c.Super; super != nil; super = super.Super {
		if m, ok := super.methodIndex[id]; ok && !m.Private {
			return m, true
		}
	}
	return nil, false
}

// RequiredMethod is Method that fails when id cannot be resolved
func (c *Class) RequiredMethod(id MethodIdentifier) (*Method, error) {
	m, ok := c.Method(id)
	if !ok {
		return nil, fmt.Errorf("method %s not found on class %s", id, c.Name)
	}
	return m, nil
}

// Field resolves an injectable field through the class hierarchy
func (c *Class) Field(name string) (*Field, bool) {
	for k := c; k != nil; k = k.Super {
		if f, ok := k.fields[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// Hierarchy returns the class and its superclasses, root first
func (c *Class) Hierarchy() []*Class {
	var chain []*Class
	for k := c; k != nil; k = k.Super {
		chain = append([]*Class{k}, chain...)
	}
	return chain
}

// Methods returns every public method callable on an instance of this class,
// each identifier resolved to its most derived declaration. Order follows the
// hierarchy root first, then declaration order.
func (c *Class) Methods() []*Method {
	var (
		out  []*Method
		seen = make(map[MethodIdentifier]bool)
	)
	for _, k := range c.Hierarchy() {
		for _, m := range k.methods {
			if m.Private || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			resolved, _ := c.Method(m.ID)
			out = append(out, resolved)
		}
	}
	return out
}

// IsAssignableTo reports whether c is other or one of its subclasses
func (c *Class) IsAssignableTo(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	return c.Name
}
