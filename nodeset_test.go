package xmlidx

import (
	"testing"
)

func TestNodeSet_AddSortsAndDedups(t *testing.T) {
	s := NewNodeSet()
	s.Add(NodeProxy{2, 5}, 4)
	s.Add(NodeProxy{1, 9}, -1)
	s.Add(NodeProxy{2, 3}, 4)
	s.Add(NodeProxy{2, 5}, 4)
	s.Add(NodeProxy{2, 3}, 4)

	deepEqual(t, s.Nodes(), []NodeProxy{{1, 9}, {2, 3}, {2, 5}})
	if s.Len() != 3 {
		t.Errorf("Len = %d, wanted 3", s.Len())
	}
	if !s.Contains(NodeProxy{2, 3}) || s.Contains(NodeProxy{2, 4}) || s.Contains(NodeProxy{3, 3}) {
		t.Errorf("Contains gave wrong answers")
	}
	deepEqual(t, s.DocIDs().ToArray(), []uint32{1, 2})
	if s.SizeHint(2) != 2 || s.SizeHint(7) != -1 {
		t.Errorf("SizeHint = %d/%d", s.SizeHint(2), s.SizeHint(7))
	}
}

func TestNodeSet_ParentWithChild(t *testing.T) {
	doc := newTestDoc(1, 1, 1, 2, 2, 5, 5, 11, 1, 3)
	s := NewNodeSet()
	s.Add(NodeProxy{1, 2}, -1)
	s.Add(NodeProxy{1, 5}, -1)

	tests := []struct {
		gid    NodeID
		want   NodeID
		wantOK bool
	}{
		{11, 5, true},
		{5, 5, true},
		{2, 2, true},
		{3, 0, false},
		{1, 0, false},
	}
	for _, tt := range tests {
		p, ok := s.ParentWithChild(doc, tt.gid)
		if ok != tt.wantOK || (ok && p != (NodeProxy{1, tt.want})) {
			t.Errorf("ParentWithChild(%d) = (%v, %v), wanted (%d, %v)", tt.gid, p, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIsSelfOrDescendant(t *testing.T) {
	doc := newTestDoc(1, 1, 1, 2, 2, 5, 1, 3)
	if !IsSelfOrDescendant(doc, 2, 5) || !IsSelfOrDescendant(doc, 2, 2) || !IsSelfOrDescendant(doc, 1, 5) {
		t.Errorf("descendant not detected")
	}
	if IsSelfOrDescendant(doc, 2, 3) || IsSelfOrDescendant(doc, 5, 2) {
		t.Errorf("non-descendant reported")
	}
}

func TestDocSet(t *testing.T) {
	d1, d2, d3 := newTestDoc(1, 4), newTestDoc(2, 1), newTestDoc(3, 4)
	s := NewDocSet(d1, d2, d3)
	deepEqual(t, s.CollectionIDs(), []CollectionID{1, 4})
	if s.Len() != 3 || s.Doc(2) != Document(d2) || s.Doc(9) != nil {
		t.Errorf("DocSet lookups failed")
	}
	deepEqual(t, s.IDs().ToArray(), []uint32{1, 2, 3})
}
