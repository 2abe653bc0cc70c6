package batch

// table maps small indices to shared values, storing each value once.
type table[T comparable] struct {
	items []T
	index map[T]uint32
}

// cache returns the index of v, adding it if needed.
func (t *table[T]) cache(v T) uint32 {
	if i, ok := t.index[v]; ok {
		return i
	}
	if t.index == nil {
		t.index = make(map[T]uint32)
	}
	// #nosec G115 -- table size is bounded by available memory, well under uint32 max
	i := uint32(len(t.items))
	t.items = append(t.items, v)
	t.index[v] = i
	return i
}

// get returns the value at index i, or the zero value.
func (t *table[T]) get(i uint32) T {
	if int(i) >= len(t.items) {
		var zero T
		return zero
	}
	return t.items[i]
}

func (t *table[T]) len() int { return len(t.items) }

func (t *table[T]) reset() {
	clear(t.items)
	t.items = t.items[:0]
	clear(t.index)
}
