package xmlidx

import (
	"testing"
)

func TestPendingBuffer_DrainSortsAndGroups(t *testing.T) {
	p := newPendingBuffer(true)
	if !p.isEmpty() {
		t.Fatalf("new buffer is not empty")
	}
	p.stage(StringValue("apple"), 5)
	p.stage(IntegerValue(3), 9)
	p.stage(StringValue("apple"), 2)
	p.stage(StringValue("Apple"), 1)
	p.stage(StringValue("apple"), 5)

	entries := p.drainAll()
	if !p.isEmpty() {
		t.Fatalf("buffer not empty after drain")
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, wanted 3", len(entries))
	}
	deepEqual(t, entries[0].Value, Value(StringValue("Apple")))
	deepEqual(t, entries[0].Data, []NodeID{1})
	deepEqual(t, entries[1].Value, Value(StringValue("apple")))
	deepEqual(t, entries[1].Data, []NodeID{2, 5})
	deepEqual(t, entries[2].Value, Value(IntegerValue(3)))
	deepEqual(t, entries[2].Data, []NodeID{9})
}

func TestPendingBuffer_CaseInsensitiveSharesEntry(t *testing.T) {
	p := newPendingBuffer(false)
	p.stage(StringValue("Apple"), 3)
	p.stage(StringValue("APPLE"), 1)
	entries := p.drainAll()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, wanted 1", len(entries))
	}
	deepEqual(t, entries[0].Data, []NodeID{1, 3})
}
