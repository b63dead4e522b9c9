package domfile

import (
	"bytes"
	"fmt"

	"github.com/andreyvit/xmlidx"
	"github.com/vmihailenco/msgpack/v5"
)

type NodeType uint8

const (
	NodeElement NodeType = iota + 1
	NodeAttribute
	NodeText
	NodeCDATA
	NodeComment
	NodeProcessingInstruction
)

func (t NodeType) String() string {
	switch t {
	case NodeElement:
		return "element"
	case NodeAttribute:
		return "attribute"
	case NodeText:
		return "text"
	case NodeCDATA:
		return "cdata"
	case NodeComment:
		return "comment"
	case NodeProcessingInstruction:
		return "pi"
	default:
		return fmt.Sprintf("nodetype(%d)", uint8(t))
	}
}

// Node is a stored node record. Address and Doc are not part of the payload;
// they are filled in from the position the record was read at.
type Node struct {
	Type     NodeType      `msgpack:"t"`
	GID      xmlidx.NodeID `msgpack:"g"`
	Name     string        `msgpack:"n,omitempty"`
	Value    string        `msgpack:"v,omitempty"`
	Children int           `msgpack:"c,omitempty"`

	Address Address      `msgpack:"-"`
	Doc     xmlidx.DocID `msgpack:"-"`
}

func (n *Node) Ref() NodeRef {
	return NodeRef{Doc: n.Doc, GID: n.GID, Address: n.Address}
}

func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s %s gid=%d @%v", n.Type, n.Name, n.GID, n.Address)
	}
	return fmt.Sprintf("%s gid=%d @%v", n.Type, n.GID, n.Address)
}

// NodeRef identifies a node logically. A zero Address means the address is
// not known and has to be looked up in the node index.
type NodeRef struct {
	Doc     xmlidx.DocID
	GID     xmlidx.NodeID
	Address Address
}

func encodeNode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(n)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode node %d: %w", n.GID, err)
	}
	return buf.Bytes(), nil
}

func decodeNode(data []byte) (*Node, error) {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	n := new(Node)
	err := dec.Decode(n)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable node record (%d bytes): %w", ErrCorrupted, len(data), err)
	}
	return n, nil
}
