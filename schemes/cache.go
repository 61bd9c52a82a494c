package schemes

import (
	"sync"

	"github.com/notargets/fvcore/mesh"
)

type cacheKey struct {
	mesh  *mesh.Mesh
	state uint64
	key   string
}

// Cache keeps geometric data derived from a mesh state, such as least
// squares vectors. Entries are dropped when the mesh moves or is retired;
// a nil Cache computes everything afresh.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]any
	unsub   map[*mesh.Mesh]func()
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]any),
		unsub:   make(map[*mesh.Mesh]func()),
	}
}

// Get returns the entry for key on the current state of m, building it when
// missing
func Get[V any](c *Cache, m *mesh.Mesh, key string, build func() V) V {
	m.CheckLive()
	if c == nil {
		return build()
	}
	k := cacheKey{mesh: m, state: m.StateID(), key: key}
	c.mu.Lock()
	if v, ok := c.entries[k]; ok {
		c.mu.Unlock()
		return v.(V)
	}
	if _, watching := c.unsub[m]; !watching {
		c.unsub[m] = m.Subscribe(func(mesh.Event) { c.invalidate(m) })
	}
	c.mu.Unlock()
	v := build()
	c.mu.Lock()
	c.entries[k] = v
	c.mu.Unlock()
	return v
}

func (c *Cache) invalidate(m *mesh.Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.mesh == m {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops watching every mesh and empties the cache
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for m, unsub := range c.unsub {
		unsub()
		delete(c.unsub, m)
	}
	c.entries = make(map[cacheKey]any)
}
