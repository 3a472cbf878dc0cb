package classes

import (
	"fmt"
	"strings"
)

// MethodIdentifier names a method by return type, name and parameter types.
// It is comparable and can be used as a map key.
type MethodIdentifier struct {
	ReturnType string
	Name       string
	params     string
}

// NewMethodIdentifier creates an identifier for a method
func NewMethodIdentifier(returnType, name string, paramTypes ...string) MethodIdentifier {
	return MethodIdentifier{
		ReturnType: returnType,
		Name:       name,
		params:     strings.Join(paramTypes, ","),
	}
}

// VoidMethod is shorthand for a no-argument method without a result, the shape
// of every lifecycle callback.
func VoidMethod(name string) MethodIdentifier {
	return NewMethodIdentifier("void", name)
}

// ParameterTypes returns the parameter type names in declaration order
func (m MethodIdentifier) ParameterTypes() []string {
	if m.params == "" {
		return nil
	}
	return strings.Split(m.params, ",")
}

// IsZero reports whether the identifier is unset
func (m MethodIdentifier) IsZero() bool {
	return m.Name == ""
}

func (m MethodIdentifier) String() string {
	return fmt.Sprintf("%s %s(%s)", m.ReturnType, m.Name, m.params)
}

// ParseMethodIdentifier parses the "ret name(p1,p2)" form produced by String.
// The return type may be omitted, in which case it defaults to "void".
func ParseMethodIdentifier(s string) (MethodIdentifier, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return MethodIdentifier{}, fmt.Errorf("invalid method identifier %q: expected name(params)", s)
	}

	head := strings.Fields(s[:open])
	returnType := "void"
	var name string
	switch len(head) {
	case 1:
		name = head[0]
	case 2:
		returnType, name = head[0], head[1]
	default:
		return MethodIdentifier{}, fmt.Errorf("invalid method identifier %q", s)
	}

	var params []string
	for _, p := range strings.Split(s[open+1:len(s)-1], ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return NewMethodIdentifier(returnType, name, params...), nil
}

// Invocation is the view of an in-flight call handed to a method body.
// Interceptor methods call Proceed to continue the chain.
type Invocation interface {
	Parameters() []any
	Proceed() (any, error)
}

// MethodFunc is the body of a method bound to a target object
type MethodFunc func(target any, inv Invocation) (any, error)

// Method is a method declared on a Class
type Method struct {
	ID             MethodIdentifier
	DeclaringClass *Class
	Private        bool
	Func           MethodFunc
}

// Name returns the method name
func (m *Method) Name() string {
	return m.ID.Name
}

// Invoke calls the method body on target
func (m *Method) Invoke(target any, inv Invocation) (any, error) {
	if m.Func == nil {
		return nil, fmt.Errorf("method %s on %s has no body", m.ID, m.DeclaringClass.Name)
	}
	return m.Func(target, inv)
}

func (m *Method) String() string {
	return m.DeclaringClass.Name + "." + m.ID.String()
}
