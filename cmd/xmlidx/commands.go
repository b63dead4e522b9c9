package main

import (
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/domfile"
)

func (e *env) dumpCmd(args []string) int {
	fs, cf := newFlagSet("dump", e)
	docID := fs.Uint("doc", 1, "document id")
	gid := fs.Uint64("gid", 1, "gid of the first node to print")
	addr := fs.String("addr", "", "address (page:tid) of the first node, instead of -gid")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, logger, err := e.setup(cf)
	if err != nil {
		return e.fail(nil, "dump: config", err)
	}

	nodeIndex, err := domfile.OpenNodeIndex(cfg.Storage.NodeIndex, true)
	if err != nil {
		return e.fail(logger, "dump: node index", err)
	}
	defer nodeIndex.Close()
	f, err := domfile.Open(cfg.Storage.PageFile, nodeIndex, storageOptions(cfg, logger))
	if err != nil {
		return e.fail(logger, "dump: page file", err)
	}
	defer f.Close()

	ref := domfile.NodeRef{Doc: xmlidx.DocID(*docID), GID: xmlidx.NodeID(*gid)}
	if *addr != "" {
		ref.Address, err = parseAddress(*addr)
		if err != nil {
			return e.fail(logger, "dump", err)
		}
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 8, 1, ' ', 0)
	it := f.NewIteratorAt(ref)
	for n := it.Next(); n != nil; n = it.Next() {
		fmt.Fprintf(tw, "%v\t%d\t%s\t%s\t%q\n", n.Address, n.GID, n.Type, n.Name, n.Value)
	}
	tw.Flush()
	if err := it.Err(); err != nil {
		return e.fail(logger, "dump", err)
	}
	return 0
}

func (e *env) keysCmd(args []string) int {
	fs, cf := newFlagSet("keys", e)
	docs := fs.String("docs", "1", "comma-separated document ids")
	typeName := fs.String("type", "string", "value type")
	start := fs.String("start", "", "first value (a prefix for strings)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, logger, err := e.setup(cf)
	if err != nil {
		return e.fail(nil, "keys: config", err)
	}

	docSet, err := parseDocSet(*docs, xmlidx.CollectionID(*cf.collection))
	if err != nil {
		return e.fail(logger, "keys", err)
	}
	typ, err := xmlidx.ParseType(*typeName)
	if err != nil {
		return e.fail(logger, "keys", err)
	}
	var startValue xmlidx.Value
	if *start == "" && typ != xmlidx.TypeString {
		startValue = lowestValue(typ)
	} else if startValue, err = xmlidx.ConvertValue(typ, *start); err != nil {
		return e.fail(logger, "keys", err)
	}

	vi, err := openIndex(cfg, logger, true)
	if err != nil {
		return e.fail(logger, "keys: value index", err)
	}
	defer vi.Close()

	ctx, cancel := signalContext()
	defer cancel()
	stats, err := vi.ScanIndexKeys(ctx, docSet, nil, startValue)
	if err != nil {
		return e.fail(logger, "keys", err)
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 8, 1, ' ', 0)
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Value, s.Occurrences, s.DocCount())
	}
	tw.Flush()
	return 0
}

// lowestValue returns a value sorting before every other value of typ.
func lowestValue(typ xmlidx.Type) xmlidx.Value {
	switch typ {
	case xmlidx.TypeInteger:
		return xmlidx.IntegerValue(-1 << 63)
	case xmlidx.TypeDouble:
		return xmlidx.DoubleValue(math.Inf(-1))
	case xmlidx.TypeBoolean:
		return xmlidx.BooleanValue(false)
	case xmlidx.TypeDateTime:
		return xmlidx.DateTimeValue{Time: time.Date(1678, 1, 1, 0, 0, 0, 0, time.UTC)}
	default:
		return xmlidx.StringValue("")
	}
}

func (e *env) findCmd(args []string) int {
	fs, cf := newFlagSet("find", e)
	docs := fs.String("docs", "1", "comma-separated document ids")
	typeName := fs.String("type", "string", "value type")
	op := fs.String("op", "=", "relation: = != < <= > >=")
	match := fs.String("match", "", "regular expression to match string values against")
	wildcard := fs.String("wildcard", "", "wildcard pattern (* and ?) to match string values against")
	ignoreCase := fs.Bool("i", false, "match case-insensitively")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, logger, err := e.setup(cf)
	if err != nil {
		return e.fail(nil, "find: config", err)
	}
	docSet, err := parseDocSet(*docs, xmlidx.CollectionID(*cf.collection))
	if err != nil {
		return e.fail(logger, "find", err)
	}

	vi, err := openIndex(cfg, logger, true)
	if err != nil {
		return e.fail(logger, "find: value index", err)
	}
	defer vi.Close()
	ctx, cancel := signalContext()
	defer cancel()

	var result *xmlidx.NodeSet
	switch {
	case *match != "" || *wildcard != "":
		pattern, mt := *match, xmlidx.MatchRegex
		if *wildcard != "" {
			pattern, mt = *wildcard, xmlidx.MatchWildcard
		}
		var flags xmlidx.MatchFlags
		if *ignoreCase {
			flags |= xmlidx.MatchCaseInsensitive
		}
		result, err = vi.Match(ctx, docSet, nil, pattern, mt, flags, vi.CaseSensitive())
	default:
		if fs.NArg() != 1 {
			fmt.Fprintln(e.stderr, "find: exactly one value expected")
			return 2
		}
		var typ xmlidx.Type
		var rel xmlidx.Relation
		var value xmlidx.Value
		if typ, err = xmlidx.ParseType(*typeName); err != nil {
			return e.fail(logger, "find", err)
		}
		if rel, err = xmlidx.ParseRelation(*op); err != nil {
			return e.fail(logger, "find", err)
		}
		if value, err = xmlidx.ConvertValue(typ, fs.Arg(0)); err != nil {
			return e.fail(logger, "find", err)
		}
		result, err = vi.Find(ctx, rel, docSet, nil, value)
	}
	if err != nil {
		return e.fail(logger, "find", err)
	}
	for _, p := range result.Nodes() {
		fmt.Fprintf(e.stdout, "%d\t%d\n", p.Doc, p.GID)
	}
	return 0
}

func (e *env) dropCmd(args []string) int {
	fs, cf := newFlagSet("drop", e)
	docID := fs.Uint("doc", 0, "document id; drops the whole collection if omitted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, logger, err := e.setup(cf)
	if err != nil {
		return e.fail(nil, "drop: config", err)
	}
	vi, err := openIndex(cfg, logger, false)
	if err != nil {
		return e.fail(logger, "drop: value index", err)
	}
	defer vi.Close()

	cid := xmlidx.CollectionID(*cf.collection)
	var what string
	if *docID != 0 {
		err = vi.DropDocument(catalogDoc{xmlidx.DocID(*docID), cid})
		what = fmt.Sprintf("document %d", *docID)
	} else {
		err = vi.DropCollection(cid)
		what = fmt.Sprintf("collection %d", cid)
	}
	if err == nil {
		err = vi.Sync()
	}
	if err != nil {
		return e.fail(logger, "drop", err)
	}
	fmt.Fprintf(e.stdout, "dropped %s\n", what)
	return 0
}
