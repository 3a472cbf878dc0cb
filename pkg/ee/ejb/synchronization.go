package ejb

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/toyz/eecore/internal/errors"
	"github.com/toyz/eecore/pkg/ee/classes"
	"github.com/toyz/eecore/pkg/ee/component"
	"github.com/toyz/eecore/pkg/ee/interceptor"
)

// ErrRolledBack is returned by Commit when the transaction rolled back instead
var ErrRolledBack = stderrors.New("transaction rolled back")

// TxStatus is the state of a Transaction
type TxStatus int

const (
	TxActive TxStatus = iota
	TxCommitted
	TxRolledBack
)

func (s TxStatus) String() string {
	switch s {
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled-back"
	default:
		return "active"
	}
}

type transactionKey struct{}

// TransactionKey is the invocation data key carrying the caller's *Transaction
var TransactionKey any = transactionKey{}

// TxSynchronization is notified around the completion of a transaction
type TxSynchronization interface {
	BeforeCompletion(ctx context.Context) error
	AfterCompletion(ctx context.Context, committed bool)
}

// Transaction is a minimal local transaction that session components can be
// enlisted in. It only drives completion callbacks; there are no resources.
type Transaction struct {
	id string

	mu     sync.Mutex
	status TxStatus
	syncs  []TxSynchronization
}

// NewTransaction begins a transaction
func NewTransaction() *Transaction {
	return &Transaction{id: uuid.NewString()}
}

// ID returns the transaction id
func (t *Transaction) ID() string { return t.id }

// Status returns the current status
func (t *Transaction) Status() TxStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// RegisterSynchronization adds s to the callbacks run on completion
func (t *Transaction) RegisterSynchronization(s TxSynchronization) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TxActive {
		return errors.IllegalStatef("register synchronization", "transaction %s is %s", t.id, t.status)
	}
	t.syncs = append(t.syncs, s)
	return nil
}

// Commit runs the before-completion callbacks and commits. If one of them
// fails the transaction rolls back and the error wraps ErrRolledBack.
func (t *Transaction) Commit(ctx context.Context) error {
	syncs, err := t.complete()
	if err != nil {
		return err
	}
	for _, s := range syncs {
		if err := s.BeforeCompletion(ctx); err != nil {
			t.finish(ctx, syncs, TxRolledBack)
			return fmt.Errorf("%w: %s: %w", ErrRolledBack, t.id, err)
		}
	}
	t.finish(ctx, syncs, TxCommitted)
	return nil
}

// Rollback rolls the transaction back; before-completion callbacks are skipped
func (t *Transaction) Rollback(ctx context.Context) error {
	syncs, err := t.complete()
	if err != nil {
		return err
	}
	t.finish(ctx, syncs, TxRolledBack)
	return nil
}

func (t *Transaction) complete() ([]TxSynchronization, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TxActive {
		return nil, errors.IllegalStatef("complete", "transaction %s is already %s", t.id, t.status)
	}
	return append([]TxSynchronization(nil), t.syncs...), nil
}

func (t *Transaction) finish(ctx context.Context, syncs []TxSynchronization, status TxStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
	for _, s := range syncs {
		s.AfterCompletion(ctx, status == TxCommitted)
	}
}

// synchronizationConfigurator enlists stateful instances in the caller's
// transaction and wires the bean's synchronization callbacks to it
type synchronizationConfigurator struct {
	sync *Synchronization
}

func (c synchronizationConfigurator) Configure(_ *component.PhaseContext, _ *component.Description, cfg *component.Configuration) error {
	class := cfg.ComponentClass()
	resolve := func(id *classes.MethodIdentifier) (*classes.Method, error) {
		if id == nil {
			return nil, nil
		}
		m, ok := class.Method(*id)
		if !ok {
			return nil, fmt.Errorf("session synchronization method %s not found on %s", id, class.Name)
		}
		return m, nil
	}

	var cb syncCallbacks
	var err error
	if cb.afterBegin, err = resolve(c.sync.AfterBegin); err != nil {
		return err
	}
	if cb.beforeCompletion, err = resolve(c.sync.BeforeCompletion); err != nil {
		return err
	}
	if cb.afterCompletion, err = resolve(c.sync.AfterCompletion); err != nil {
		return err
	}
	cb.loader = interceptor.NewLoaderSwitch(cfg.ClassLoader())

	f := interceptor.FactoryFunc(func(fc *interceptor.FactoryContext) interceptor.Interceptor {
		return &syncInterceptor{callbacks: cb, target: fc.Ref(component.InstanceKey)}
	})
	for _, m := range cfg.DefinedComponentMethods() {
		cfg.ComponentInterceptorDeque(m).AddLast(f)
	}
	return nil
}

type syncCallbacks struct {
	loader           *interceptor.LoaderSwitch
	afterBegin       *classes.Method
	beforeCompletion *classes.Method
	afterCompletion  *classes.Method
}

// syncInterceptor is created per instance and tracks the transaction the
// instance is enlisted in
type syncInterceptor struct {
	callbacks syncCallbacks
	target    *interceptor.Ref

	mu       sync.Mutex
	enlisted *Transaction
}

func (s *syncInterceptor) Process(ctx *interceptor.Context) (any, error) {
	tx, _ := ctx.PrivateData(TransactionKey).(*Transaction)
	if tx == nil {
		return ctx.Proceed()
	}

	s.mu.Lock()
	current := s.enlisted
	s.mu.Unlock()
	if current != nil && current != tx {
		return nil, errors.IllegalStatef("invoke", "instance is already enlisted in transaction %s", current.ID())
	}
	if current == nil {
		if err := s.enlist(ctx, tx); err != nil {
			return nil, err
		}
	}
	return ctx.Proceed()
}

func (s *syncInterceptor) enlist(ctx *interceptor.Context, tx *Transaction) error {
	inst, _ := component.InstanceFrom(ctx)
	owner, _ := component.ComponentFrom(ctx)
	reg := &instanceSync{interceptor: s, inst: inst, owner: owner}
	if err := tx.RegisterSynchronization(reg); err != nil {
		return err
	}

	s.mu.Lock()
	s.enlisted = tx
	s.mu.Unlock()

	if _, err := reg.call(ctx.Context(), s.callbacks.afterBegin); err != nil {
		return fmt.Errorf("after-begin: %w", err)
	}
	return nil
}

// instanceSync adapts the synchronization callbacks of one instance to TxSynchronization
type instanceSync struct {
	interceptor *syncInterceptor
	inst        *component.Instance
	owner       component.Component
}

// call runs a callback method behind the component's class loader switch
func (r *instanceSync) call(ctx context.Context, m *classes.Method, args ...any) (any, error) {
	if m == nil {
		return nil, nil
	}
	ic := interceptor.NewContext(ctx)
	ic.SetMethod(m)
	ic.SetParameters(args)
	ic.SetTarget(r.interceptor.target.Get())
	return interceptor.Chain(r.interceptor.callbacks.loader, interceptor.Func(func(ic *interceptor.Context) (any, error) {
		target := ic.Target()
		if target == nil {
			return nil, fmt.Errorf("synchronization callback %s: instance is gone", m.ID)
		}
		return m.Invoke(target, ic)
	})).Process(ic)
}

func (r *instanceSync) BeforeCompletion(ctx context.Context) error {
	if _, err := r.call(ctx, r.interceptor.callbacks.beforeCompletion); err != nil {
		// the instance cannot be trusted after a failed before-completion
		if st, ok := r.owner.(*Stateful); ok && r.inst != nil {
			st.discard(r.inst)
		}
		return err
	}
	return nil
}

func (r *instanceSync) AfterCompletion(ctx context.Context, committed bool) {
	r.interceptor.mu.Lock()
	r.interceptor.enlisted = nil
	r.interceptor.mu.Unlock()

	if r.inst != nil && r.inst.Destroyed() {
		return
	}
	if _, err := r.call(ctx, r.interceptor.callbacks.afterCompletion, committed); err != nil {
		if st, ok := r.owner.(*Stateful); ok {
			st.Log().WithError(err).Warn("after-completion callback failed")
		}
	}
}
