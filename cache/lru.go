package cache

// lruNode is an entry of lruList.
type lruNode[K comparable, V any] struct {
	key        K
	value      V
	prev, next *lruNode[K, V]
}

// lruList is a doubly linked list ordered from most to least recently used.
// It uses a sentinel root so insertion and removal never branch on nil.
type lruList[K comparable, V any] struct {
	root lruNode[K, V]
	len  int
}

func newLRUList[K comparable, V any]() *lruList[K, V] {
	l := &lruList[K, V]{}
	l.root.next = &l.root
	l.root.prev = &l.root
	return l
}

// Len returns the number of nodes.
func (l *lruList[K, V]) Len() int { return l.len }

// PushFront inserts a new node at the front.
func (l *lruList[K, V]) PushFront(key K, value V) *lruNode[K, V] {
	n := &lruNode[K, V]{key: key, value: value}
	l.insertFront(n)
	l.len++
	return n
}

func (l *lruList[K, V]) insertFront(n *lruNode[K, V]) {
	n.prev = &l.root
	n.next = l.root.next
	l.root.next.prev = n
	l.root.next = n
}

func (l *lruList[K, V]) unlink(n *lruNode[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// MoveToFront marks n as most recently used.
func (l *lruList[K, V]) MoveToFront(n *lruNode[K, V]) {
	if n == nil || n.next == nil || l.root.next == n {
		return
	}
	l.unlink(n)
	l.insertFront(n)
}

// Remove unlinks n.
func (l *lruList[K, V]) Remove(n *lruNode[K, V]) {
	if n == nil || n.next == nil {
		return
	}
	l.unlink(n)
	l.len--
}

// Oldest returns the least recently used node, or nil.
func (l *lruList[K, V]) Oldest() *lruNode[K, V] {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}

// Clear drops every node.
func (l *lruList[K, V]) Clear() {
	l.root.next = &l.root
	l.root.prev = &l.root
	l.len = 0
}
