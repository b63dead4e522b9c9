package xmlidx

import (
	"slices"
)

// orderedValues is a sorted vector keyed by Value. Insertion order is
// irrelevant; iteration follows CompareValues.
type orderedValues[T any] struct {
	caseSensitive bool
	entries       []valueEntry[T]
}

type valueEntry[T any] struct {
	Value Value
	Data  T
}

func (m *orderedValues[T]) find(v Value) (int, bool) {
	return slices.BinarySearchFunc(m.entries, v, func(e valueEntry[T], v Value) int {
		return CompareValues(e.Value, v, m.caseSensitive)
	})
}

// getOrCreate returns a pointer to the data for v, inserting a zero value
// first if needed. The pointer is valid until the next insertion.
func (m *orderedValues[T]) getOrCreate(v Value) *T {
	i, found := m.find(v)
	if !found {
		m.entries = slices.Insert(m.entries, i, valueEntry[T]{Value: v})
	}
	return &m.entries[i].Data
}

func (m *orderedValues[T]) len() int {
	return len(m.entries)
}

// pendingBuffer collects node ids per value for the document being indexed.
// It belongs to a single indexing pass and is not safe for concurrent use.
type pendingBuffer struct {
	orderedValues[[]NodeID]
}

func newPendingBuffer(caseSensitive bool) pendingBuffer {
	return pendingBuffer{orderedValues[[]NodeID]{caseSensitive: caseSensitive}}
}

// stage records that node holds value. Ids are sorted when drained.
func (p *pendingBuffer) stage(v Value, node NodeID) {
	ids := p.getOrCreate(v)
	*ids = append(*ids, node)
}

func (p *pendingBuffer) isEmpty() bool {
	return len(p.entries) == 0
}

// restore puts drained entries back, merging them with anything staged
// since.
func (p *pendingBuffer) restore(entries []valueEntry[[]NodeID]) {
	for _, e := range entries {
		ids := p.getOrCreate(e.Value)
		*ids = append(*ids, e.Data...)
	}
}

// drainAll returns all entries in value order and empties the buffer.
func (p *pendingBuffer) drainAll() []valueEntry[[]NodeID] {
	entries := p.entries
	p.entries = nil
	for i := range entries {
		entries[i].Data = sortNodeIDs(entries[i].Data)
	}
	return entries
}
