package xmlidx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring"
)

// keyVisitor is called by scans for each key in order. Returning false ends
// the scan.
type keyVisitor func(key, postings []byte) (bool, error)

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// postingCollector adds the nodes referenced by matching keys to a NodeSet.
type postingCollector struct {
	ctx        context.Context
	docs       DocumentSet
	contextSet ContextSet
	result     *NodeSet

	// returnAncestor adds the matching context node instead of the node
	// holding the value.
	returnAncestor bool

	// accept, if set, looks at the key before any postings are decoded.
	accept func(key []byte) bool
}

func (c *postingCollector) onMatch(key, postings []byte) (bool, error) {
	if c.accept != nil && !c.accept(key) {
		return true, nil
	}
	r := NewPostingReader(postings)
	for r.NextSegment() {
		if err := cancelled(c.ctx); err != nil {
			return false, err
		}
		doc := c.docs.Doc(r.Doc())
		if doc == nil || (c.contextSet != nil && !c.contextSet.ContainsDoc(doc.ID())) {
			continue
		}
		sizeHint := -1
		if c.contextSet != nil {
			sizeHint = c.contextSet.SizeHint(doc.ID())
		}
		for gid := range r.IDs() {
			current := NodeProxy{doc.ID(), gid}
			if c.contextSet == nil {
				c.result.Add(current, sizeHint)
				continue
			}
			if parent, ok := c.contextSet.ParentWithChild(doc, gid); ok {
				if c.returnAncestor {
					c.result.Add(parent, sizeHint)
				} else {
					c.result.Add(current, sizeHint)
				}
			}
		}
	}
	return true, nil
}

// ValueOccurrences describes one distinct indexed value.
type ValueOccurrences struct {
	Value       Value
	Occurrences int
	Docs        *roaring.Bitmap
}

func (o *ValueOccurrences) DocCount() int {
	return int(o.Docs.GetCardinality())
}

// statsCollector gathers ValueOccurrences for keys of a single type.
type statsCollector struct {
	ctx        context.Context
	docs       DocumentSet
	contextSet ContextSet
	typ        Type
	logger     *slog.Logger
	values     orderedValues[*ValueOccurrences]
}

func (c *statsCollector) onMatch(key, postings []byte) (bool, error) {
	if keyType(key) != c.typ {
		return false, nil
	}
	value, _, err := DeserializeKey(key)
	if err != nil {
		c.logger.Warn("xmlidx: undecodable index key", hexAttr("key", key), "err", err)
		return true, nil
	}

	var oc *ValueOccurrences
	r := NewPostingReader(postings)
	for r.NextSegment() {
		if err := cancelled(c.ctx); err != nil {
			return false, err
		}
		doc := c.docs.Doc(r.Doc())
		if doc == nil {
			continue
		}
		docAdded := false
		for gid := range r.IDs() {
			if c.contextSet != nil {
				if _, ok := c.contextSet.ParentWithChild(doc, gid); !ok {
					continue
				}
			}
			if oc == nil {
				p := c.values.getOrCreate(value)
				if *p == nil {
					*p = &ValueOccurrences{Value: value, Docs: roaring.New()}
				}
				oc = *p
			}
			if !docAdded {
				oc.Docs.Add(uint32(doc.ID()))
				docAdded = true
			}
			oc.Occurrences++
		}
	}
	return true, nil
}

func (c *statsCollector) results() []ValueOccurrences {
	result := make([]ValueOccurrences, 0, c.values.len())
	for _, e := range c.values.entries {
		result = append(result, *e.Data)
	}
	return result
}
