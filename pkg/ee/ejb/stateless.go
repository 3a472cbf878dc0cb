package ejb

import (
	"context"

	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
	"github.com/toyz/eecore/pkg/ee/pool"
)

// Stateless serves every call from a pooled instance. The instance goes back to
// the pool after a successful call. Any error discards it and its pre-destroy
// callbacks run before the factory lets go of it.
type Stateless struct {
	*component.Basic
	pool pool.Pool[*component.Instance]
}

// NewStateless creates a stateless component and its pool
func NewStateless(cfg *component.Configuration, env *component.Environment, opts Options) (*Stateless, error) {
	s := &Stateless{}
	s.Basic = component.NewBasic(cfg, env, component.WithOwner(s))

	settings := opts.Pool
	if settings.PassThrough {
		s.pool = pool.NewPassThroughPool[*component.Instance](s.Name(), opts.PoolObserver)
	} else {
		if settings.MaxSize == 0 {
			settings.MaxSize = DefaultPoolSize
		}
		if settings.Timeout == 0 {
			settings.Timeout = DefaultPoolTimeout
		}
		p, err := pool.NewStrictMaxPool[*component.Instance](pool.Options{
			Name:     s.Name(),
			MaxSize:  settings.MaxSize,
			Timeout:  settings.Timeout,
			Observer: opts.PoolObserver,
			Log:      s.Log(),
		})
		if err != nil {
			return nil, err
		}
		s.pool = p
	}
	s.pool.SetInstanceFactory(pool.FactoryFuncs[*component.Instance]{
		Create:  s.CreateInstance,
		Destroy: s.DestroyInstance,
	})
	return s, nil
}

// Kind implements Bean
func (s *Stateless) Kind() Kind { return KindStateless }

// Pool implements Poolable
func (s *Stateless) Pool() pool.Pool[*component.Instance] { return s.pool }

// Stop closes the pool before the instances still alive are destroyed
func (s *Stateless) Stop(ctx context.Context) error {
	if err := s.pool.Close(ctx); err != nil {
		s.Log().WithError(err).Warn("closing pool failed")
	}
	return s.Basic.Stop(ctx)
}

func (s *Stateless) associate(ctx *interceptor.Context) (any, error) {
	inst, err := s.pool.Get(ctx.Context())
	if err != nil {
		return nil, err
	}

	res, err := withInstance(ctx, inst)
	if err != nil {
		if derr := s.pool.Discard(inst); derr != nil {
			s.Log().WithError(derr).Warn("discarding pooled instance failed")
		}
		return nil, err
	}
	if rerr := s.pool.Release(ctx.Context(), inst); rerr != nil {
		s.Log().WithError(rerr).Warn("releasing pooled instance failed")
	}
	return res, nil
}

var (
	_ Bean     = (*Stateless)(nil)
	_ Poolable = (*Stateless)(nil)
)
