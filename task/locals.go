package task

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vcpurt/vcpurt/internal/rterr"
)

// localKeyCounter hands out the monotonically increasing keys task-local
// values are stored under, mirroring the original source's global
// COUNTER: AtomicU32 starting at 1 (0 is reserved, matching this package's
// own "id 0 is the idle task" convention for task ids).
var localKeyCounter atomic.Uint32

func nextLocalKey() uint32 {
	return localKeyCounter.Add(1)
}

// entry is one slot in a task's locals map, sorted by key for binary
// search, exactly as the original's LocalsMap.get_or_insert does via
// binary_search_by_key.
type entry struct {
	key   uint32
	value any
}

// localsMap is the per-task sorted slice of task-local values. Task-locals
// are ordinarily touched only by the goroutine currently polling the owning
// task; mu still guards every access, so getOrInsert and clear are safe to
// call concurrently.
type localsMap struct {
	mu      sync.Mutex
	entries []entry
}

func (m *localsMap) getOrInsert(key uint32, init func() any) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].key >= key })
	if i < len(m.entries) && m.entries[i].key == key {
		return m.entries[i].value
	}
	v := init()
	m.entries = append(m.entries, entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry{key: key, value: v}
	return v
}

// clear drops every local value. Entries are taken out of the slice before
// being dropped (the slice is cleared first, then references released) to
// mirror the original's note that locals are cleared in unspecified order
// and that reentrant access during clear must not observe a half-cleared
// map.
func (m *localsMap) clear() {
	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()
	for i := range entries {
		entries[i].value = nil
	}
}

// LocalKey is a task-local storage slot. The zero value is not usable;
// construct one with NewLocalKey.
type LocalKey[T any] struct {
	key  uint32
	init func() T
}

// NewLocalKey allocates a new task-local slot. init runs at most once per
// task, the first time With is called for that task.
func NewLocalKey[T any](init func() T) *LocalKey[T] {
	return &LocalKey[T]{key: nextLocalKey(), init: init}
}

// With runs fn with a pointer to this key's value for the currently
// polling task, lazily initializing it on first access. It panics if
// called outside of a task's poll (there is no current task to scope the
// storage to).
func (k *LocalKey[T]) With(fn func(v *T)) {
	t := Current()
	if t == nil {
		rterr.Invariant("task-local accessed with no current task")
	}
	raw := t.locals.getOrInsert(k.key, func() any {
		v := k.init()
		return &v
	})
	fn(raw.(*T))
}
