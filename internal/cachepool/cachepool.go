package cachepool

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the capacity of a pool nobody configured.
const DefaultCapacity = 5

// Cacheable values report their own weight. Values that don't weigh 1.
type Cacheable interface {
	Weight() int
}

// Weigher computes the weight of a value in one pool.
type Weigher func(value any) int

// EvictFunc is told about every value pushed out by capacity pressure.
type EvictFunc func(pool, tag string, value any)

func defaultWeight(value any) int {
	if c, ok := value.(Cacheable); ok {
		return c.Weight()
	}
	return 1
}

type entry struct {
	value  any
	weight int
}

// pool is one weighted LRU. simplelru keeps recency; weights are summed
// alongside and eviction runs oldest-first until the total fits.
type pool struct {
	name     string
	lru      *simplelru.LRU[string, entry]
	capacity int
	total    int
	weigh    Weigher
}

// Registry holds named pools. Every operation, including pool creation,
// runs under one registry lock.
type Registry struct {
	mu              sync.Mutex
	defaultCapacity int
	capacities      map[string]int
	weighers        map[string]Weigher
	pools           map[string]*pool
	onEvict         EvictFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultCapacity sets the capacity of unconfigured pools.
func WithDefaultCapacity(n int) Option {
	return func(r *Registry) { r.defaultCapacity = n }
}

// WithCapacity sets the capacity a pool gets when it is created.
func WithCapacity(name string, n int) Option {
	return func(r *Registry) { r.capacities[name] = n }
}

// WithWeigher sets the weight function of a pool.
func WithWeigher(name string, w Weigher) Option {
	return func(r *Registry) { r.weighers[name] = w }
}

// WithEvictFunc registers a callback for capacity evictions. It runs with
// the registry lock held and must not call back into the registry.
func WithEvictFunc(fn EvictFunc) Option {
	return func(r *Registry) { r.onEvict = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		defaultCapacity: DefaultCapacity,
		capacities:      make(map[string]int),
		weighers:        make(map[string]Weigher),
		pools:           make(map[string]*pool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// poolLocked returns the named pool, creating it on first use.
func (r *Registry) poolLocked(name string) *pool {
	if p, ok := r.pools[name]; ok {
		return p
	}
	capacity, ok := r.capacities[name]
	if !ok {
		capacity = r.defaultCapacity
	}
	weigh := r.weighers[name]
	if weigh == nil {
		weigh = defaultWeight
	}
	// Count-based eviction is disabled; weight decides.
	lru, err := simplelru.NewLRU[string, entry](math.MaxInt32, nil)
	if err != nil {
		panic(err)
	}
	p := &pool{name: name, lru: lru, capacity: capacity, weigh: weigh}
	r.pools[name] = p
	return p
}

// Put stores value under tag as the most recently used entry, replacing
// any previous value, then evicts oldest entries while the pool is over
// capacity.
func (r *Registry) Put(name, tag string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(r.poolLocked(name), tag, value)
}

func (r *Registry) putLocked(p *pool, tag string, value any) {
	if old, ok := p.lru.Peek(tag); ok {
		p.total -= old.weight
	}
	w := p.weigh(value)
	p.lru.Add(tag, entry{value: value, weight: w})
	p.total += w
	r.trimLocked(p)
}

func (r *Registry) trimLocked(p *pool) {
	for p.total > p.capacity {
		tag, e, ok := p.lru.RemoveOldest()
		if !ok {
			p.total = 0
			return
		}
		p.total -= e.weight
		if r.onEvict != nil {
			r.onEvict(p.name, tag, e.value)
		}
	}
}

// Get returns the value under tag and marks it most recently used.
func (r *Registry) Get(name, tag string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[name]
	if !ok {
		return nil, false
	}
	e, ok := p.lru.Get(tag)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetAndRemove returns the value under tag and drops it from the pool.
func (r *Registry) GetAndRemove(name, tag string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[name]
	if !ok {
		return nil, false
	}
	e, ok := p.lru.Peek(tag)
	if !ok {
		return nil, false
	}
	p.lru.Remove(tag)
	p.total -= e.weight
	return e.value, true
}

// Remove drops tag from the pool and reports whether it was present.
func (r *Registry) Remove(name, tag string) bool {
	_, ok := r.GetAndRemove(name, tag)
	return ok
}

// GetOrCreate returns the value under tag, or stores and returns the
// result of create. create runs with the registry lock held.
func (r *Registry) GetOrCreate(name, tag string, create func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.poolLocked(name)
	if e, ok := p.lru.Get(tag); ok {
		return e.value
	}
	v := create()
	r.putLocked(p, tag, v)
	return v
}

// GetAll returns a snapshot of a pool's entries.
func (r *Registry) GetAll(name string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any)
	p, ok := r.pools[name]
	if !ok {
		return out
	}
	for _, tag := range p.lru.Keys() {
		if e, ok := p.lru.Peek(tag); ok {
			out[tag] = e.value
		}
	}
	return out
}

// Tags returns a pool's tags from least to most recently used.
func (r *Registry) Tags(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[name]
	if !ok {
		return []string{}
	}
	return p.lru.Keys()
}

// Clear empties the named pools, or every pool when none are named.
func (r *Registry) Clear(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.selectLocked(names) {
		p.lru.Purge()
		p.total = 0
	}
}

// CurrentSize sums the weight held by the named pools, or all pools.
func (r *Registry) CurrentSize(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, p := range r.selectLocked(names) {
		total += p.total
	}
	return total
}

// Capacity sums the capacity of the named pools, or all pools. A pool that
// does not exist yet reports the capacity it would be created with.
func (r *Registry) Capacity(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		total := 0
		for _, p := range r.pools {
			total += p.capacity
		}
		return total
	}
	total := 0
	for _, name := range names {
		if p, ok := r.pools[name]; ok {
			total += p.capacity
			continue
		}
		if c, ok := r.capacities[name]; ok {
			total += c
		} else {
			total += r.defaultCapacity
		}
	}
	return total
}

// SetCapacity changes a pool's capacity, evicting if it now overflows.
func (r *Registry) SetCapacity(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacities[name] = n
	if p, ok := r.pools[name]; ok {
		p.capacity = n
		r.trimLocked(p)
	}
}

func (r *Registry) selectLocked(names []string) []*pool {
	if len(names) == 0 {
		out := make([]*pool, 0, len(r.pools))
		for _, p := range r.pools {
			out = append(out, p)
		}
		return out
	}
	out := make([]*pool, 0, len(names))
	for _, name := range names {
		if p, ok := r.pools[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// GetAs is Get with a type assertion.
func GetAs[T any](r *Registry, name, tag string) (T, bool) {
	v, ok := r.Get(name, tag)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// GetAndRemoveAs is GetAndRemove with a type assertion. A value of the
// wrong type is still removed.
func GetAndRemoveAs[T any](r *Registry, name, tag string) (T, bool) {
	v, ok := r.GetAndRemove(name, tag)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// GetOrCreateAs is GetOrCreate with a typed factory.
func GetOrCreateAs[T any](r *Registry, name, tag string, create func() T) (T, bool) {
	v := r.GetOrCreate(name, tag, func() any { return create() })
	t, ok := v.(T)
	return t, ok
}
