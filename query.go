package xmlidx

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Relation is the comparison operator of Find.
type Relation int

const (
	EQ Relation = iota
	NEQ
	LT
	LTEQ
	GT
	GTEQ
)

func (r Relation) String() string {
	switch r {
	case EQ:
		return "="
	case NEQ:
		return "!="
	case LT:
		return "<"
	case LTEQ:
		return "<="
	case GT:
		return ">"
	case GTEQ:
		return ">="
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// ParseRelation parses the operator form printed by Relation.String.
func ParseRelation(s string) (Relation, error) {
	for r := EQ; r <= GTEQ; r++ {
		if s == r.String() {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown relation %q", s)
}

// keyRange returns the scan covering all keys in relation rel to key. For
// NEQ, the key itself must be skipped by the caller.
func keyRange(rel Relation, prefix, key []byte) RawRange {
	switch rel {
	case EQ:
		return RawII(key, key)
	case NEQ:
		return RawPrefix(prefix)
	case LT:
		return RawOE(key).Prefixed(prefix)
	case LTEQ:
		return RawOI(key).Prefixed(prefix)
	case GT:
		return RawEO(key).Prefixed(prefix)
	case GTEQ:
		return RawIO(key).Prefixed(prefix)
	default:
		panic(fmt.Errorf("invalid relation %d", int(rel)))
	}
}

// Find returns the nodes whose value relates to value by rel. If contextSet
// is not nil, only nodes within it are considered, and the matching context
// nodes are returned instead. A cancelled ctx stops the scan and returns
// the nodes found so far along with ErrCancelled.
func (vi *ValueIndex) Find(ctx context.Context, rel Relation, docs DocumentSet, contextSet ContextSet, value Value) (*NodeSet, error) {
	start := time.Now()
	defer vi.metrics.scanned("find", start)

	result := NewNodeSet()
	c := &postingCollector{
		ctx:            ctx,
		docs:           docs,
		contextSet:     contextSet,
		result:         result,
		returnAncestor: true,
	}
	for _, cid := range docs.CollectionIDs() {
		key := SerializeKey(value, cid, vi.caseSensitive)
		rang := keyRange(rel, PrefixKey(value.Type(), cid), key)
		if rel == NEQ {
			c.accept = func(k []byte) bool { return string(k) != string(key) }
		}
		if err := vi.scan(ctx, rang, c.onMatch); err != nil {
			return result, err
		}
	}
	return result, nil
}

type MatchType int

const (
	MatchRegex MatchType = iota
	// MatchWildcard patterns use * for any run of characters and ? for a
	// single character, and must match the whole value.
	MatchWildcard
)

type MatchFlags int

const (
	MatchCaseInsensitive MatchFlags = 1 << iota
)

// Match returns the nodes whose string value matches pattern.
// caseSensitiveQuery tells whether the query distinguishes case; only when
// it agrees with the index is a leading literal of an anchored pattern used
// to narrow the scan.
func (vi *ValueIndex) Match(ctx context.Context, docs DocumentSet, contextSet ContextSet, pattern string, typ MatchType, flags MatchFlags, caseSensitiveQuery bool) (*NodeSet, error) {
	start := time.Now()
	defer vi.metrics.scanned("match", start)

	if !caseSensitiveQuery {
		flags |= MatchCaseInsensitive
	}
	re, literal, err := compileMatch(pattern, typ, flags)
	if err != nil {
		return nil, err
	}
	switch {
	case caseSensitiveQuery != vi.caseSensitive, vi.caseSensitive && flags&MatchCaseInsensitive != 0:
		literal = ""
	case !vi.caseSensitive:
		literal = foldCase(literal)
	}

	result := NewNodeSet()
	c := &postingCollector{
		ctx:            ctx,
		docs:           docs,
		contextSet:     contextSet,
		result:         result,
		returnAncestor: true,
		accept: func(key []byte) bool {
			return re.Match(key[keyPrefixLen:])
		},
	}
	for _, cid := range docs.CollectionIDs() {
		prefix := append(PrefixKey(TypeString, cid), literal...)
		if err := vi.scan(ctx, RawPrefix(prefix), c.onMatch); err != nil {
			return result, err
		}
	}
	return result, nil
}

// compileMatch compiles pattern and returns the literal every match must
// start with, if the pattern guarantees one.
func compileMatch(pattern string, typ MatchType, flags MatchFlags) (*regexp.Regexp, string, error) {
	var expr, literal string
	switch typ {
	case MatchRegex:
		expr = pattern
		if rest, ok := strings.CutPrefix(pattern, "^"); ok && !strings.Contains(rest, "|") {
			literal = leadingLiteral(rest, "?*+{")
		}
	case MatchWildcard:
		expr = wildcardToRegexp(pattern)
		literal = leadingLiteral(pattern, "")
	default:
		return nil, "", fmt.Errorf("xmlidx: invalid match type %d", int(typ))
	}
	if flags&MatchCaseInsensitive != 0 {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, "", fmt.Errorf("xmlidx: invalid pattern %q: %w", pattern, err)
	}
	return re, literal, nil
}

// leadingLiteral returns the leading letters and digits of s. If the
// character following them is one of quantifiers, the last one is optional
// and is dropped.
func leadingLiteral(s string, quantifiers string) string {
	end := 0
	for end < len(s) {
		r, size := utf8.DecodeRuneInString(s[end:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		end += size
	}
	if end < len(s) && end > 0 && strings.IndexByte(quantifiers, s[end]) >= 0 {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return s[:end]
}

func wildcardToRegexp(pattern string) string {
	var buf strings.Builder
	buf.WriteString("^(?s:")
	for _, r := range pattern {
		switch r {
		case '*':
			buf.WriteString(".*")
		case '?':
			buf.WriteString(".")
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	buf.WriteString(")$")
	return buf.String()
}

// ScanIndexKeys returns statistics for every distinct value of start's type
// that is not less than start. For strings, only values starting with start
// are returned.
func (vi *ValueIndex) ScanIndexKeys(ctx context.Context, docs DocumentSet, contextSet ContextSet, start Value) ([]ValueOccurrences, error) {
	began := time.Now()
	defer vi.metrics.scanned("keys", began)

	c := &statsCollector{
		ctx:        ctx,
		docs:       docs,
		contextSet: contextSet,
		typ:        start.Type(),
		logger:     vi.logger,
		values:     orderedValues[*ValueOccurrences]{caseSensitive: vi.caseSensitive},
	}
	for _, cid := range docs.CollectionIDs() {
		key := SerializeKey(start, cid, vi.caseSensitive)
		var rang RawRange
		if start.Type() == TypeString {
			rang = RawPrefix(key)
		} else {
			rang = RawIO(key).Prefixed(CollectionPrefix(cid))
		}
		if err := vi.scan(ctx, rang, c.onMatch); err != nil {
			return c.results(), err
		}
	}

	result := c.results()
	vi.logger.Debug("xmlidx: scanned index keys", "values", len(result), "elapsed", time.Since(began))
	return result, nil
}

// scan visits the keys of rang under a read lock.
func (vi *ValueIndex) scan(ctx context.Context, rang RawRange, visit keyVisitor) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	return vi.view(func(tx valueTx) error {
		cur := rang.newCursor(tx.Cursor(), vi.scanTrace())
		for cur.Next() {
			if err := cancelled(ctx); err != nil {
				return err
			}
			more, err := visit(cur.Key(), cur.Value())
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		return nil
	})
}
