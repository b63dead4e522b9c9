/*
Package xmlidx implements the value index of an embedded XML database: a
persistent mapping from typed node values to the nodes holding them, kept in
an ordered key-value store (Bolt, or memory for tests).

Indexing a document goes through a staging buffer. The caller sets the
current document, stages (value, gid) pairs while walking its nodes, then
commits them with one of:

1. Flush, for a document indexed for the first time.

2. ReindexDocument or ReindexSubtree, to replace the postings of nodes that
changed while keeping those of untouched nodes.

3. Remove, to delete the staged nodes.

Queries (Find, Match, ScanIndexKeys) scan every collection of a DocumentSet
and may be restricted to the subtrees of a ContextSet.

# Technical Details

**Keys.**
A key is the collection id (2 bytes, big endian), the type tag (1 byte) and
an order-preserving encoding of the value, so that byte order matches value
order within a type:

1. Strings: UTF-8, case-folded if the index is case-insensitive.

2. Integers and dateTimes (Unix nanoseconds): 8 bytes big endian with the
sign bit flipped.

3. Doubles: 8 bytes, negative numbers have all bits flipped, others only the
sign bit.

4. Booleans: a single 0 or 1 byte.

**Postings.**
The value stored under a key is a concatenation of per-document segments:

	docID:32 count:32 (delta:uvarint){count}

where the deltas rebuild the strictly ascending gids of the document. A
segment cut short by the end of the value ends decoding without an error.

**Locking.**
A single reader/writer lock guards the index. Writers take it once per
staged value, readers once per scanned collection, so one document's
entries are not committed atomically.
*/
package xmlidx
