package metadata

// ComponentBuilder provides a fluent interface for building component metadata
type ComponentBuilder struct {
	c *ComponentMetadata
}

// NewComponentBuilder starts a component of kind
func NewComponentBuilder(kind, name, className string) *ComponentBuilder {
	return &ComponentBuilder{c: &ComponentMetadata{
		Name:      name,
		ClassName: className,
		Kind:      kind,
		Origin:    FromAnnotation,
	}}
}

// WithViews adds local views
func (b *ComponentBuilder) WithViews(views ...string) *ComponentBuilder {
	b.c.Views = append(b.c.Views, views...)
	return b
}

// WithNaming sets the naming mode
func (b *ComponentBuilder) WithNaming(mode string) *ComponentBuilder {
	b.c.Naming = mode
	return b
}

// WithStartup marks a singleton for creation at start
func (b *ComponentBuilder) WithStartup() *ComponentBuilder {
	b.c.Startup = true
	return b
}

// WithLifecycle names the lifecycle callbacks of the component class
func (b *ComponentBuilder) WithLifecycle(postConstruct, preDestroy string) *ComponentBuilder {
	b.c.PostConstruct = postConstruct
	b.c.PreDestroy = preDestroy
	return b
}

// WithAroundInvoke names the around-invoke method of the component class
func (b *ComponentBuilder) WithAroundInvoke(method string) *ComponentBuilder {
	b.c.AroundInvoke = method
	return b
}

// WithInterceptors appends class-level interceptors
func (b *ComponentBuilder) WithInterceptors(classNames ...string) *ComponentBuilder {
	b.c.Interceptors = append(b.c.Interceptors, classNames...)
	return b
}

// ExcludingDefaultInterceptors opts the whole component out of the module defaults
func (b *ComponentBuilder) ExcludingDefaultInterceptors() *ComponentBuilder {
	b.c.ExcludeDefault = true
	return b
}

// WithMethodInterceptors binds interceptors to one method
func (b *ComponentBuilder) WithMethodInterceptors(binding MethodInterceptors) *ComponentBuilder {
	b.c.MethodInterceptors = append(b.c.MethodInterceptors, binding)
	return b
}

// WithPool sets the pool settings
func (b *ComponentBuilder) WithPool(pool PoolTrait) *ComponentBuilder {
	b.c.Pool = &pool
	return b
}

// WithSynchronization sets the session synchronization callbacks
func (b *ComponentBuilder) WithSynchronization(sync SynchronizationTrait) *ComponentBuilder {
	b.c.Synchronization = &sync
	return b
}

// WithInjection injects lookup into field
func (b *ComponentBuilder) WithInjection(field, lookup string) *ComponentBuilder {
	b.c.Injections = append(b.c.Injections, Injection{Field: field, Lookup: lookup})
	return b
}

// WithLocalRef adds an ejb-local-ref
func (b *ComponentBuilder) WithLocalRef(ref LocalRef) *ComponentBuilder {
	b.c.LocalRefs = append(b.c.LocalRefs, ref)
	return b
}

// At records the declaration site
func (b *ComponentBuilder) At(origin Origin, file string, line int) *ComponentBuilder {
	b.c.Origin = origin
	b.c.Location = Location{File: file, Line: line}
	return b
}

// Build returns the metadata. The builder must not be used afterwards.
func (b *ComponentBuilder) Build() *ComponentMetadata {
	return b.c
}
