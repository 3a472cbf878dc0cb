package management

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Server is the contract the web framework adapters implement. The management
// API only ever talks to this interface.
type Server interface {
	// Route registration
	RegisterRoute(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc)
	RegisterGroup(prefix string) RouteGroup
	// Mount serves a plain net/http handler under path
	Mount(path string, handler http.Handler)

	// Global middleware
	Use(middleware MiddlewareFunc)

	// Server lifecycle
	Start(addr string) error
	Stop(ctx context.Context) error

	// Handler exposes the engine as a net/http handler
	Handler() http.Handler
	Name() string
}

// RouteGroup is a set of routes sharing a prefix
type RouteGroup interface {
	RegisterRoute(method string, path Path, handler HandlerFunc, middlewares ...MiddlewareFunc)
	Use(middleware MiddlewareFunc)
	Group(prefix string) RouteGroup
}

// RequestContext is the framework-agnostic view of one request
type RequestContext interface {
	Method() string
	Path() string
	RealIP() string

	Param(key string) string
	QueryParam(key string) string

	// Context is the request-scoped context
	Context() context.Context
	Bind(v any) error

	Get(key string) any
	Set(key string, val any)

	SetHeader(key, value string)
	JSON(code int, v any) error
	NoContent(code int) error
}

// ErrorKey is the request value under which adapters record the error a
// handler returned before answering it
const ErrorKey = "management.error"

// HandlerFunc handles a request
type HandlerFunc func(RequestContext) error

// MiddlewareFunc wraps a handler
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// HTTPError is an error carrying the status code it should be answered with
type HTTPError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("HTTP %d: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Internal }

// NewHTTPError creates an HTTPError; the message defaults to the status text
func NewHTTPError(code int, message string, internal ...error) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	he := &HTTPError{Code: code, Message: message}
	if len(internal) > 0 {
		he.Internal = internal[0]
	}
	return he
}

// ErrorStatus returns the status and body an adapter answers err with
func ErrorStatus(err error) (int, map[string]any) {
	if he, ok := err.(*HTTPError); ok {
		return he.Code, map[string]any{"code": he.Code, "error": he.Message}
	}
	return http.StatusInternalServerError, map[string]any{"code": http.StatusInternalServerError, "error": err.Error()}
}

// PathPartType is the kind of one path segment
type PathPartType int

const (
	StaticPart PathPartType = iota
	ParameterPart
	WildcardPart
)

// PathPart is one parsed piece of a Path
type PathPart struct {
	Type  PathPartType
	Value string // literal text, or the parameter name
}

// Path is a route path with {name} parameters and an optional {*} wildcard
type Path string

// Parts parses p into static, parameter and wildcard parts
func (p Path) Parts() []PathPart {
	path := string(p)
	var parts []PathPart
	for i := 0; i < len(path); {
		if path[i] == '{' {
			if j := strings.IndexByte(path[i:], '}'); j > 0 {
				name := path[i+1 : i+j]
				if name == "*" {
					parts = append(parts, PathPart{Type: WildcardPart, Value: "*"})
				} else {
					parts = append(parts, PathPart{Type: ParameterPart, Value: name})
				}
				i += j + 1
				continue
			}
		}
		start := i
		i++
		for i < len(path) && path[i] != '{' {
			i++
		}
		parts = append(parts, PathPart{Type: StaticPart, Value: path[start:i]})
	}
	return parts
}

// Format renders p in the colon style shared by echo, gin and fiber. wildcard
// is the engine's catch-all token.
func (p Path) Format(wildcard string) string {
	var b strings.Builder
	for _, part := range p.Parts() {
		switch part.Type {
		case ParameterPart:
			b.WriteString(":" + part.Value)
		case WildcardPart:
			b.WriteString(wildcard)
		default:
			b.WriteString(part.Value)
		}
	}
	return b.String()
}
