// Package scanner walks Go source and turns //ee:: annotations into component
// and class metadata.
//
// A struct carrying one of the component annotations (stateless, stateful,
// singleton, managed) becomes a component. A struct without one that still
// declares lifecycle callbacks or injections becomes plain class metadata,
// which is how interceptor classes are described.
package scanner

import (
	stderrors "errors"
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/toyz/eecore/internal/annotations"
	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/internal/metadata"
	"github.com/toyz/eecore/internal/utils"
)

// Scanner extracts metadata from Go packages
type Scanner struct {
	reader *utils.FileReader
	parser annotations.ParserEngine
}

// New returns a scanner reading files through reader. A nil reader gets a
// fresh one.
func New(reader *utils.FileReader) *Scanner {
	if reader == nil {
		reader = utils.NewFileReader()
	}
	return &Scanner{
		reader: reader,
		parser: annotations.NewParser(nil),
	}
}

// ScanSource scans a single in-memory file
func (s *Scanner) ScanSource(filename, source string) (*metadata.PackageMetadata, error) {
	file, err := s.reader.ParseGoSource(filename, source)
	if err != nil {
		return nil, errors.WrapParseError(filename, err)
	}
	return s.scanFiles(".", []*ast.File{file})
}

// ScanDirectory scans the non-test Go files of one package directory
func (s *Scanner) ScanDirectory(dir string) (*metadata.PackageMetadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapFileSystemError("read", dir, err)
	}

	var files []*ast.File
	goFiles := utils.DefaultGoFileFilter()
	for _, entry := range entries {
		name := entry.Name()
		if !goFiles(filepath.Join(dir, name), entry) {
			continue
		}
		file, err := s.reader.ParseGoFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.WrapParseError(name, err)
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.FileSystemErrorCode, "no Go files in %s", dir)
	}
	for _, f := range files[1:] {
		if f.Name.Name != files[0].Name.Name {
			return nil, errors.Newf(errors.FileSystemErrorCode,
				"multiple packages in %s: %s and %s", dir, files[0].Name.Name, f.Name.Name)
		}
	}
	return s.scanFiles(dir, files)
}

func (s *Scanner) scanFiles(pkgPath string, files []*ast.File) (*metadata.PackageMetadata, error) {
	c := &collector{
		scanner: s,
		fset:    s.reader.GetFileSet(),
		pkg:     files[0].Name.Name,
		types:   make(map[string]*declaredType),
	}

	insp := inspector.New(files)
	filter := []ast.Node{(*ast.GenDecl)(nil), (*ast.FuncDecl)(nil)}
	insp.WithStack(filter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return false
		}
		switch decl := n.(type) {
		case *ast.GenDecl:
			// only package-level types; stack is [file, decl]
			if len(stack) == 2 && decl.Tok == token.TYPE {
				c.typeDecl(decl)
			}
		case *ast.FuncDecl:
			c.funcDecl(decl)
		}
		return false
	})

	pkg := &metadata.PackageMetadata{
		PackageName: c.pkg,
		PackagePath: pkgPath,
	}
	for _, name := range c.order {
		c.build(pkg, c.types[name])
	}

	if c.errs != nil && !c.errs.IsEmpty() {
		return nil, c.errs
	}
	return pkg, nil
}

type annotatedMember struct {
	name string
	loc  metadata.Location
	anns []*annotations.ParsedAnnotation
}

type declaredType struct {
	name     string
	declared bool
	isStruct bool
	loc      metadata.Location
	anns     []*annotations.ParsedAnnotation
	methods  []annotatedMember
	fields   []annotatedMember
}

func (t *declaredType) annotated() bool {
	return len(t.anns) > 0 || len(t.methods) > 0 || len(t.fields) > 0
}

type collector struct {
	scanner *Scanner
	fset    *token.FileSet
	pkg     string
	types   map[string]*declaredType
	order   []string
	errs    *errors.MultipleErrors
}

func (c *collector) typeFor(name string) *declaredType {
	t, ok := c.types[name]
	if !ok {
		t = &declaredType{name: name}
		c.types[name] = t
		c.order = append(c.order, name)
	}
	return t
}

func (c *collector) typeDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		ts := spec.(*ast.TypeSpec)
		doc := ts.Doc
		if doc == nil && len(decl.Specs) == 1 {
			doc = decl.Doc
		}

		t := c.typeFor(ts.Name.Name)
		t.declared = true
		t.loc = c.location(ts.Pos())
		t.anns = c.annotations(doc, annotations.TypeTarget, ts.Name.Name)

		st, ok := ts.Type.(*ast.StructType)
		t.isStruct = ok
		if !ok {
			if len(t.anns) > 0 {
				c.fail(t.loc, "//ee::%s must annotate a struct type, %s is not a struct", t.anns[0].Type, ts.Name.Name)
			}
			continue
		}
		for _, field := range st.Fields.List {
			if field.Doc == nil {
				continue
			}
			if len(field.Names) == 0 {
				if anns := c.annotations(field.Doc, annotations.FieldTarget, ts.Name.Name); len(anns) > 0 {
					c.fail(c.location(field.Pos()), "embedded field of %s cannot carry //ee:: annotations", ts.Name.Name)
				}
				continue
			}
			for _, ident := range field.Names {
				anns := c.annotations(field.Doc, annotations.FieldTarget, ts.Name.Name+"."+ident.Name)
				if len(anns) > 0 {
					t.fields = append(t.fields, annotatedMember{name: ident.Name, loc: c.location(ident.Pos()), anns: anns})
				}
			}
		}
	}
}

func (c *collector) funcDecl(decl *ast.FuncDecl) {
	if decl.Doc == nil {
		return
	}
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		if anns := c.annotations(decl.Doc, annotations.MethodTarget, decl.Name.Name); len(anns) > 0 {
			c.fail(c.location(decl.Pos()), "//ee::%s on function %s needs a method receiver", anns[0].Type, decl.Name.Name)
		}
		return
	}

	recv := receiverName(decl.Recv.List[0].Type)
	anns := c.annotations(decl.Doc, annotations.MethodTarget, recv+"."+decl.Name.Name)
	if len(anns) == 0 {
		return
	}
	t := c.typeFor(recv)
	t.methods = append(t.methods, annotatedMember{name: decl.Name.Name, loc: c.location(decl.Pos()), anns: anns})
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	case *ast.Ident:
		return e.Name
	}
	return ""
}

// annotations parses every //ee:: line of doc and checks it may sit on target
func (c *collector) annotations(doc *ast.CommentGroup, target annotations.Target, decl string) []*annotations.ParsedAnnotation {
	if doc == nil {
		return nil
	}
	var out []*annotations.ParsedAnnotation
	for _, comment := range doc.List {
		if !annotations.IsAnnotation(comment.Text) {
			continue
		}
		pos := c.fset.Position(comment.Slash)
		loc := annotations.SourceLocation{File: pos.Filename, Line: pos.Line, Column: pos.Column}

		ann, err := c.scanner.parser.ParseAnnotation(comment.Text, loc)
		if err != nil {
			c.annotationError(err)
			continue
		}
		if err := c.scanner.parser.CheckTarget(ann, target); err != nil {
			c.annotationError(err)
			continue
		}
		ann.Target = decl
		out = append(out, ann)
	}
	return out
}

func (c *collector) location(pos token.Pos) metadata.Location {
	p := c.fset.Position(pos)
	return metadata.Location{File: p.Filename, Line: p.Line}
}

func (c *collector) fail(loc metadata.Location, format string, args ...any) {
	errors.AddToMultiple(&c.errs, errors.Newf(errors.ValidationErrorCode, format, args...).
		WithLocation(errors.SourceLocation{File: loc.File, Line: loc.Line}))
}

func (c *collector) annotationError(err error) {
	var multi *annotations.MultipleAnnotationErrors
	if stderrors.As(err, &multi) {
		for _, e := range multi.Errors {
			errors.AddToMultiple(&c.errs, convert(e))
		}
		return
	}
	var single annotations.AnnotationError
	if stderrors.As(err, &single) {
		errors.AddToMultiple(&c.errs, convert(single))
		return
	}
	errors.AddToMultiple(&c.errs, errors.Wrap(errors.SyntaxErrorCode, err.Error(), err))
}

var annotationCodes = map[annotations.ErrorCode]errors.ErrorCode{
	annotations.SyntaxErrorCode:       errors.SyntaxErrorCode,
	annotations.ValidationErrorCode:   errors.ValidationErrorCode,
	annotations.SchemaErrorCode:       errors.SchemaErrorCode,
	annotations.RegistrationErrorCode: errors.RegistrationErrorCode,
}

func convert(e annotations.AnnotationError) errors.ContainerError {
	loc := e.Location()
	// the annotation errors already print their location
	msg := strings.TrimPrefix(e.Error(), fmt.Sprintf("%s: ", loc))
	out := errors.Wrap(annotationCodes[e.Code()], msg, e).
		WithLocation(errors.SourceLocation{File: loc.File, Line: loc.Line, Column: loc.Column})
	if hint := e.Suggestion(); hint != "" {
		out.WithSuggestion(hint)
	}
	return out
}

func (c *collector) className(typeName string) string {
	return c.pkg + "." + typeName
}

func (c *collector) build(pkg *metadata.PackageMetadata, t *declaredType) {
	if !t.annotated() {
		return
	}
	if !t.declared {
		for _, m := range t.methods {
			c.fail(m.loc, "method %s.%s is annotated but %s is not declared in package %s", t.name, m.name, t.name, c.pkg)
		}
		return
	}
	if !t.isStruct {
		return
	}

	var kinds []*annotations.ParsedAnnotation
	for _, a := range t.anns {
		if a.Type.IsComponent() {
			kinds = append(kinds, a)
		}
	}
	switch len(kinds) {
	case 0:
		if cls := c.buildClass(t); cls != nil {
			pkg.Classes = append(pkg.Classes, cls)
		}
	case 1:
		pkg.Components = append(pkg.Components, c.buildComponent(t, kinds[0]))
	default:
		c.fail(t.loc, "%s declares more than one component kind: %s and %s", t.name, kinds[0].Type, kinds[1].Type)
	}
}

func (c *collector) buildComponent(t *declaredType, kind *annotations.ParsedAnnotation) *metadata.ComponentMetadata {
	comp := &metadata.ComponentMetadata{
		Name:      kind.GetString("Name", t.name),
		ClassName: c.className(t.name),
		Kind:      kind.Type.String(),
		Views:     kind.GetStringSlice("Views"),
		Naming:    kind.GetString("Naming", metadata.NamingModule),
		Startup:   kind.GetBool("Startup"),
		Origin:    metadata.FromAnnotation,
		Location:  t.loc,
	}

	if kind.Type == annotations.StatelessAnnotation &&
		(kind.HasParameter("MaxSize") || kind.HasParameter("Timeout") || kind.GetBool("PassThrough")) {
		comp.Pool = &metadata.PoolTrait{
			MaxSize:     kind.GetInt("MaxSize"),
			PassThrough: kind.GetBool("PassThrough"),
		}
		if kind.HasParameter("Timeout") {
			comp.Pool.Timeout = kind.GetDuration("Timeout").String()
		}
	}

	seen := false
	for _, a := range t.anns {
		if a.Type != annotations.InterceptorsAnnotation {
			continue
		}
		if seen {
			c.fail(t.loc, "%s has more than one //ee::interceptors annotation", t.name)
			continue
		}
		seen = true
		if a.GetBool("ExcludeClass") {
			c.fail(t.loc, "-ExcludeClass is only meaningful on a method of %s", t.name)
		}
		comp.Interceptors = a.GetStringSlice("Classes")
		comp.ExcludeDefault = a.GetBool("ExcludeDefault")
	}

	c.lifecycle(t, &comp.LifecycleTrait)

	for _, m := range t.methods {
		for _, a := range m.anns {
			switch a.Type {
			case annotations.InterceptorsAnnotation:
				if _, dup := comp.MethodBinding(m.name); dup {
					c.fail(m.loc, "method %s.%s has more than one //ee::interceptors annotation", t.name, m.name)
					continue
				}
				comp.MethodInterceptors = append(comp.MethodInterceptors, metadata.MethodInterceptors{
					Method:         m.name,
					Interceptors:   a.GetStringSlice("Classes"),
					ExcludeDefault: a.GetBool("ExcludeDefault"),
					ExcludeClass:   a.GetBool("ExcludeClass"),
				})
			case annotations.AfterBeginAnnotation, annotations.BeforeCompletionAnnotation, annotations.AfterCompletionAnnotation:
				if kind.Type != annotations.StatefulAnnotation {
					c.fail(m.loc, "//ee::%s on %s.%s: session synchronization needs a stateful component, %s is %s",
						a.Type, t.name, m.name, comp.Name, comp.Kind)
					continue
				}
				if comp.Synchronization == nil {
					comp.Synchronization = &metadata.SynchronizationTrait{}
				}
				slot := syncSlot(comp.Synchronization, a.Type)
				c.assign(slot, m, a.Type, t.name)
			}
		}
	}

	for _, f := range t.fields {
		injection, ref := c.field(t, f)
		if injection != nil {
			comp.Injections = append(comp.Injections, *injection)
		}
		if ref != nil {
			comp.LocalRefs = append(comp.LocalRefs, *ref)
		}
	}
	return comp
}

func (c *collector) buildClass(t *declaredType) *metadata.ClassMetadata {
	for _, a := range t.anns {
		c.fail(t.loc, "//ee::%s on %s needs a component annotation on the same type", a.Type, t.name)
	}

	cls := &metadata.ClassMetadata{
		ClassName: c.className(t.name),
		Origin:    metadata.FromAnnotation,
		Location:  t.loc,
	}
	c.lifecycle(t, &cls.LifecycleTrait)

	for _, m := range t.methods {
		for _, a := range m.anns {
			switch a.Type {
			case annotations.InterceptorsAnnotation,
				annotations.AfterBeginAnnotation, annotations.BeforeCompletionAnnotation, annotations.AfterCompletionAnnotation:
				c.fail(m.loc, "//ee::%s on %s.%s needs %s to be a component", a.Type, t.name, m.name, t.name)
			}
		}
	}
	for _, f := range t.fields {
		injection, ref := c.field(t, f)
		if ref != nil {
			c.fail(f.loc, "ejb reference %s on %s.%s must be declared on a component", ref.Name, t.name, f.name)
		}
		if injection != nil {
			cls.Injections = append(cls.Injections, *injection)
		}
	}

	if !cls.HasCallbacks() && len(cls.Injections) == 0 {
		return nil
	}
	return cls
}

// lifecycle fills the callbacks every class may declare
func (c *collector) lifecycle(t *declaredType, l *metadata.LifecycleTrait) {
	for _, m := range t.methods {
		for _, a := range m.anns {
			switch a.Type {
			case annotations.PostConstructAnnotation:
				c.assign(&l.PostConstruct, m, a.Type, t.name)
			case annotations.PreDestroyAnnotation:
				c.assign(&l.PreDestroy, m, a.Type, t.name)
			case annotations.AroundInvokeAnnotation:
				c.assign(&l.AroundInvoke, m, a.Type, t.name)
			}
		}
	}
}

func (c *collector) assign(slot *string, m annotatedMember, t annotations.AnnotationType, owner string) {
	if *slot != "" {
		c.fail(m.loc, "%s declares more than one //ee::%s: %s and %s", owner, t, *slot, m.name)
		return
	}
	*slot = m.name
}

func syncSlot(s *metadata.SynchronizationTrait, t annotations.AnnotationType) *string {
	switch t {
	case annotations.AfterBeginAnnotation:
		return &s.AfterBegin
	case annotations.BeforeCompletionAnnotation:
		return &s.BeforeCompletion
	default:
		return &s.AfterCompletion
	}
}

func (c *collector) field(t *declaredType, f annotatedMember) (*metadata.Injection, *metadata.LocalRef) {
	if len(f.anns) > 1 {
		types := make([]string, 0, len(f.anns))
		for _, a := range f.anns {
			types = append(types, "//ee::"+a.Type.String())
		}
		sort.Strings(types)
		c.fail(f.loc, "field %s.%s carries %s; use one injection annotation per field", t.name, f.name, strings.Join(types, " and "))
		return nil, nil
	}

	a := f.anns[0]
	switch a.Type {
	case annotations.InjectAnnotation:
		return &metadata.Injection{Field: f.name, Lookup: a.GetString("Lookup")}, nil
	case annotations.EJBRefAnnotation:
		return nil, &metadata.LocalRef{
			Name:   a.GetString("Name"),
			Type:   a.GetString("Type"),
			Link:   a.GetString("Link"),
			Lookup: a.GetString("Lookup"),
			Field:  f.name,
		}
	}
	return nil, nil
}
