package domfile

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/andreyvit/xmlidx"
	"go.etcd.io/bbolt"
)

var nodesBucket = []byte("nodes")

const nodeKeyLen = 4 + 8

// NodeIndex maps (document, gid) pairs to record addresses. Nodes whose
// records moved keep pointing at their original address, which holds a
// link to the current one.
type NodeIndex struct {
	db *bbolt.DB
}

func OpenNodeIndex(path string, readOnly bool) (*NodeIndex, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.ReadOnly = readOnly
	bopt.FreelistType = bbolt.FreelistMapType

	db, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("domfile: node index: %w", err)
	}
	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(nodesBucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("domfile: node index: %w", err)
		}
	}
	return &NodeIndex{db: db}, nil
}

func nodeKey(doc xmlidx.DocID, gid xmlidx.NodeID) []byte {
	var k [nodeKeyLen]byte
	binary.BigEndian.PutUint32(k[:], uint32(doc))
	binary.BigEndian.PutUint64(k[4:], uint64(gid))
	return k[:]
}

func (x *NodeIndex) Put(doc xmlidx.DocID, gid xmlidx.NodeID, addr Address) error {
	return x.PutAll([]NodeRef{{Doc: doc, GID: gid, Address: addr}})
}

// PutAll records the addresses of refs in a single transaction.
func (x *NodeIndex) PutAll(refs []NodeRef) error {
	if len(refs) == 0 {
		return nil
	}
	err := x.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(nodesBucket)
		if err != nil {
			return err
		}
		var v [8]byte
		for _, ref := range refs {
			binary.BigEndian.PutUint64(v[:], uint64(ref.Address))
			if err := b.Put(nodeKey(ref.Doc, ref.GID), v[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("domfile: node index: %w", err)
	}
	return nil
}

// Lookup returns the address recorded for the node, or ErrNodeNotFound.
func (x *NodeIndex) Lookup(doc xmlidx.DocID, gid xmlidx.NodeID) (Address, error) {
	var addr Address
	err := x.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(nodeKey(doc, gid)); len(v) == 8 {
			addr = Address(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("domfile: node index: %w", err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("%w: document %d gid %d", ErrNodeNotFound, doc, gid)
	}
	return addr, nil
}

func (x *NodeIndex) Close() error {
	return x.db.Close()
}
