package interceptor

import "fmt"

// Deque is an ordered, append-only list of interceptor factories. Entries can be
// added at either end but never removed, so each configurator only ever adds to
// what earlier ones built. A frozen deque rejects further additions.
type Deque struct {
	name   string
	items  []Factory
	frozen bool
}

// NewDeque creates an empty deque; name is used in panic messages
func NewDeque(name string) *Deque {
	return &Deque{name: name}
}

// AddLast appends factories in order
func (d *Deque) AddLast(factories ...Factory) {
	d.checkMutable()
	d.items = append(d.items, factories...)
}

// AddFirst prepends one factory
func (d *Deque) AddFirst(f Factory) {
	d.checkMutable()
	d.items = append([]Factory{f}, d.items...)
}

// Len returns the number of factories
func (d *Deque) Len() int {
	return len(d.items)
}

// Items returns a copy of the factories in chain order
func (d *Deque) Items() []Factory {
	out := make([]Factory, len(d.items))
	copy(out, d.items)
	return out
}

// Freeze makes the deque read-only
func (d *Deque) Freeze() {
	d.frozen = true
}

// Frozen reports whether the deque is read-only
func (d *Deque) Frozen() bool {
	return d.frozen
}

// Create builds the chained interceptor for one instance
func (d *Deque) Create(fc *FactoryContext) Interceptor {
	return ChainFactories(fc, d.items)
}

func (d *Deque) checkMutable() {
	if d.frozen {
		panic(fmt.Sprintf("interceptor deque %s is frozen", d.name))
	}
}
