package replay

import (
	"sync"

	"github.com/gogpu/gfx/resource"
)

type trashedHandle struct {
	kind   resource.Kind
	handle Handle
}

type orphanKey struct {
	kind resource.Kind
	id   resource.ID
}

// trashQueue collects native objects whose destruction is deferred to
// Recycle. It is the only Engine state touched from other goroutines.
type trashQueue struct {
	mu       sync.Mutex
	handles  []trashedHandle
	orphans  []orphanKey
	deferred []func()
}

func (q *trashQueue) push(kind resource.Kind, h Handle) {
	if h == nil {
		return
	}
	q.mu.Lock()
	q.handles = append(q.handles, trashedHandle{kind: kind, handle: h})
	q.mu.Unlock()
}

func (q *trashQueue) orphan(k orphanKey) {
	q.mu.Lock()
	q.orphans = append(q.orphans, k)
	q.mu.Unlock()
}

func (q *trashQueue) later(fn func()) {
	q.mu.Lock()
	q.deferred = append(q.deferred, fn)
	q.mu.Unlock()
}

func (q *trashQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles) + len(q.orphans) + len(q.deferred)
}

// take swaps out the queued work. The returned slices are owned by the
// caller until they are handed back through give.
func (q *trashQueue) take(handles []trashedHandle, orphans []orphanKey, deferred []func()) ([]trashedHandle, []orphanKey, []func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, o, d := q.handles, q.orphans, q.deferred
	q.handles, q.orphans, q.deferred = handles[:0], orphans[:0], deferred[:0]
	return h, o, d
}
