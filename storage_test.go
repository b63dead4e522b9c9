package xmlidx

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

func forEachStore(t *testing.T, f func(t *testing.T, s valueStore)) {
	t.Run("mem", func(t *testing.T) {
		s := newMemStore()
		defer s.Close()
		f(t, s)
	})
	t.Run("bolt", func(t *testing.T) {
		bdb := must(bbolt.Open(filepath.Join(t.TempDir(), "s.db"), 0666, &bbolt.Options{NoSync: true}))
		s := must(newBoltStore(bdb, false))
		defer s.Close()
		f(t, s)
	})
}

func countKeys(c keyCursor) int {
	var n int
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func TestStore_CursorMoves(t *testing.T) {
	forEachStore(t, func(t *testing.T, s valueStore) {
		fill(t, s, "b2", "vb2", "a", "va", "c", "vc", "b1", "vb1")

		tx := must(s.Begin(false))
		defer tx.Rollback()
		if n := countKeys(tx.Cursor()); n != 4 {
			t.Errorf("key count = %d, wanted 4", n)
		}
		if string(tx.Get([]byte("b2"))) != "vb2" || tx.Get([]byte("b")) != nil {
			t.Errorf("Get gave wrong values")
		}
		if err := tx.Put([]byte("z"), []byte("1")); err == nil {
			t.Errorf("Put succeeded in a read transaction")
		}

		c := tx.Cursor()
		expectKey(t, "First", c.First, "a")
		expectKey(t, "Next", c.Next, "b1")
		expectKey(t, "Seek", func() ([]byte, []byte) { return c.Seek([]byte("b")) }, "b1")
		expectKey(t, "Seek exact", func() ([]byte, []byte) { return c.Seek([]byte("b2")) }, "b2")
		expectKey(t, "Next", c.Next, "c")
		expectKey(t, "Next at end", c.Next, "")
		expectKey(t, "Seek past end", func() ([]byte, []byte) { return c.Seek([]byte("d")) }, "")
	})
}

func TestStore_DeleteAndRollback(t *testing.T) {
	forEachStore(t, func(t *testing.T, s valueStore) {
		fill(t, s, "k1", "1", "k2", "2")

		tx := must(s.Begin(true))
		ensure(tx.Delete([]byte("k1")))
		ensure(tx.Delete([]byte("nope")))
		ensure(tx.Put([]byte("k2"), []byte("changed")))
		ensure(tx.Rollback())
		ensure(tx.Rollback())

		rtx := must(s.Begin(false))
		if countKeys(rtx.Cursor()) != 2 || string(rtx.Get([]byte("k2"))) != "2" {
			t.Errorf("rollback did not discard the changes")
		}
		ensure(rtx.Rollback())
		ensure(s.Sync())
	})
}

func TestStore_ReadersKeepSnapshot(t *testing.T) {
	s := newMemStore()
	defer s.Close()
	fill(t, s, "a", "1")

	rtx := must(s.Begin(false))
	defer rtx.Rollback()
	fill(t, s, "b", "2", "a", "3")

	if n := countKeys(rtx.Cursor()); n != 1 {
		t.Errorf("reader saw %d keys, wanted 1", n)
	}
	if got := string(rtx.Get([]byte("a"))); got != "1" {
		t.Errorf("reader saw a = %q, wanted 1", got)
	}
}

func TestStore_DeleteWhileIterating(t *testing.T) {
	forEachStore(t, func(t *testing.T, s valueStore) {
		fill(t, s, "a", "1", "b", "2", "c", "3")

		tx := must(s.Begin(true))
		defer tx.Rollback()
		c := tx.Cursor()
		expectKey(t, "First", c.First, "a")
		ensure(tx.Delete([]byte("b")))
		expectKey(t, "Next after delete", func() ([]byte, []byte) { return c.Seek([]byte("a\x00")) }, "c")
	})
}

func TestStore_ReadOnlyBoltWithoutBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.db")
	ensure(must(bbolt.Open(path, 0666, nil)).Close())

	bdb := must(bbolt.Open(path, 0666, &bbolt.Options{ReadOnly: true}))
	s := must(newBoltStore(bdb, true))
	defer s.Close()

	tx := must(s.Begin(false))
	defer tx.Rollback()
	if tx.Get([]byte("a")) != nil || countKeys(tx.Cursor()) != 0 {
		t.Errorf("empty read-only store returned data")
	}
}

func TestStore_ClosedMemStore(t *testing.T) {
	s := newMemStore()
	ensure(s.Close())
	if _, err := s.Begin(false); err == nil {
		t.Errorf("Begin succeeded on a closed store")
	}
}

func expectKey(t *testing.T, name string, f func() ([]byte, []byte), want string) {
	t.Helper()
	k, _ := f()
	if string(k) != want {
		t.Errorf("%s = %q, wanted %q", name, k, want)
	}
}
