package interceptor

// LifecycleAware is an interceptor that also observes instance construction and
// destruction. Each callback is responsible for calling ctx.Proceed.
type LifecycleAware interface {
	Interceptor
	PostConstruct(ctx *Context) (any, error)
	PreDestroy(ctx *Context) (any, error)
}

// PostConstructAdapter exposes the post-construct callback of l as an interceptor
func PostConstructAdapter(l LifecycleAware) Interceptor {
	return Func(l.PostConstruct)
}

// PreDestroyAdapter exposes the pre-destroy callback of l as an interceptor
func PreDestroyAdapter(l LifecycleAware) Interceptor {
	return Func(l.PreDestroy)
}
