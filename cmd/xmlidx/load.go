package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/domfile"
)

// xmlDoc is a parsed document. Node gids are assigned in document order
// starting at 1, so a parent's gid is always below its children's.
type xmlDoc struct {
	id      xmlidx.DocID
	cid     xmlidx.CollectionID
	nodes   []*domfile.Node
	parents map[xmlidx.NodeID]xmlidx.NodeID
	values  []nodeText
}

// nodeText is the text content indexed for an element or attribute.
type nodeText struct {
	gid  xmlidx.NodeID
	text string
}

func (d *xmlDoc) ID() xmlidx.DocID                  { return d.id }
func (d *xmlDoc) CollectionID() xmlidx.CollectionID { return d.cid }
func (d *xmlDoc) ReindexRequired() int              { return 0 }

func (d *xmlDoc) Parent(gid xmlidx.NodeID) (xmlidx.NodeID, bool) {
	p, ok := d.parents[gid]
	return p, ok
}

func (d *xmlDoc) TreeLevel(gid xmlidx.NodeID) int {
	level := 0
	for p, ok := d.parents[gid]; ok; p, ok = d.parents[p] {
		level++
	}
	return level
}

func parseDocument(r io.Reader, id xmlidx.DocID, cid xmlidx.CollectionID) (*xmlDoc, error) {
	doc := &xmlDoc{id: id, cid: cid, parents: make(map[xmlidx.NodeID]xmlidx.NodeID)}
	type open struct {
		node *domfile.Node
		text strings.Builder
	}
	var stack []*open
	var nextGID xmlidx.NodeID

	add := func(n *domfile.Node) {
		nextGID++
		n.GID = nextGID
		if len(stack) > 0 {
			parent := stack[len(stack)-1].node
			doc.parents[n.GID] = parent.GID
			if n.Type != domfile.NodeAttribute {
				parent.Children++
			}
		}
		doc.nodes = append(doc.nodes, n)
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && len(doc.nodes) > 0 {
				return nil, fmt.Errorf("more than one root element")
			}
			el := &domfile.Node{Type: domfile.NodeElement, Name: qname(tok.Name)}
			add(el)
			stack = append(stack, &open{node: el})
			for _, a := range tok.Attr {
				attr := &domfile.Node{Type: domfile.NodeAttribute, Name: qname(a.Name), Value: a.Value}
				add(attr)
				doc.values = append(doc.values, nodeText{attr.GID, a.Value})
			}
		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if text := strings.TrimSpace(top.text.String()); text != "" {
				doc.values = append(doc.values, nodeText{top.node.GID, text})
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(tok)
			if strings.TrimSpace(text) == "" {
				continue
			}
			stack[len(stack)-1].text.WriteString(text)
			add(&domfile.Node{Type: domfile.NodeText, Value: text})
		case xml.Comment:
			add(&domfile.Node{Type: domfile.NodeComment, Value: string(tok)})
		case xml.ProcInst:
			if tok.Target == "xml" {
				continue
			}
			add(&domfile.Node{Type: domfile.NodeProcessingInstruction, Name: tok.Target, Value: string(tok.Inst)})
		}
	}
	if len(doc.nodes) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return doc, nil
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// indexValues stages the text of doc as strings, and additionally as
// numbers where it parses as one.
func indexValues(vi *xmlidx.ValueIndex, doc *xmlDoc) {
	vi.SetDocument(doc)
	for _, v := range doc.values {
		vi.StoreText(xmlidx.TypeString, v.gid, v.text)
		if num, err := xmlidx.ConvertValue(xmlidx.TypeDouble, v.text); err == nil {
			vi.Stage(num, v.gid)
		}
	}
}

// loadCmd replaces the page file with the given document and reindexes its
// values.
func (e *env) loadCmd(args []string) int {
	fs, cf := newFlagSet("load", e)
	docID := fs.Uint("doc", 1, "document id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.stderr, "load: exactly one XML file expected")
		return 2
	}
	cfg, logger, err := e.setup(cf)
	if err != nil {
		return e.fail(nil, "load: config", err)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return e.fail(logger, "load: open document", err)
	}
	doc, err := parseDocument(f, xmlidx.DocID(*docID), xmlidx.CollectionID(*cf.collection))
	f.Close()
	if err != nil {
		return e.fail(logger, "load: parse document", fmt.Errorf("%s: %w", fs.Arg(0), err))
	}

	nodeIndex, err := domfile.OpenNodeIndex(cfg.Storage.NodeIndex, false)
	if err != nil {
		return e.fail(logger, "load: node index", err)
	}
	defer nodeIndex.Close()
	w, err := domfile.Create(cfg.Storage.PageFile, nodeIndex, domfile.WriterOptions{
		Logger:   logger,
		PageSize: cfg.Storage.PageSize,
	})
	if err != nil {
		return e.fail(logger, "load: page file", err)
	}
	if _, err := w.Begin(doc.id); err != nil {
		w.Close()
		return e.fail(logger, "load: page file", err)
	}
	for _, n := range doc.nodes {
		if _, err := w.Add(n); err != nil {
			w.Close()
			return e.fail(logger, "load: page file", err)
		}
	}
	if err := w.Close(); err != nil {
		return e.fail(logger, "load: page file", err)
	}

	vi, err := openIndex(cfg, logger, false)
	if err != nil {
		return e.fail(logger, "load: value index", err)
	}
	defer vi.Close()
	if err := vi.DropDocument(doc); err != nil {
		return e.fail(logger, "load: value index", err)
	}
	indexValues(vi, doc)
	values := vi.PendingLen()
	if err := vi.Flush(); err != nil {
		return e.fail(logger, "load: value index", err)
	}
	if err := vi.Sync(); err != nil {
		return e.fail(logger, "load: value index", err)
	}
	fmt.Fprintf(e.stdout, "loaded document %d: %d nodes, %d distinct values\n", doc.id, len(doc.nodes), values)
	return 0
}
