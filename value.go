package xmlidx

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Type is the type tag stored in the third byte of every index key.
type Type uint8

const (
	TypeString Type = 1 + iota
	TypeInteger
	TypeDouble
	TypeBoolean
	TypeDateTime
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "dateTime"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType returns the type named by s, as printed by Type.String.
func ParseType(s string) (Type, error) {
	for t := TypeString; t <= TypeDateTime; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// Value is an atomic value that can be used as an index key. The set of
// implementations is closed: StringValue, IntegerValue, DoubleValue,
// BooleanValue and DateTimeValue.
type Value interface {
	Type() Type
	String() string

	// appendKeyBytes appends the order-preserving encoding of the value.
	appendKeyBytes(buf []byte, caseSensitive bool) []byte
}

type (
	StringValue  string
	IntegerValue int64
	DoubleValue  float64
	BooleanValue bool

	// DateTimeValue holds an instant with nanosecond precision. Keys do not
	// preserve the location, decoded values are in UTC.
	DateTimeValue struct {
		time.Time
	}
)

const signBit = 1 << 63

func (v StringValue) Type() Type       { return TypeString }
func (v StringValue) String() string   { return string(v) }
func (v IntegerValue) Type() Type      { return TypeInteger }
func (v IntegerValue) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v DoubleValue) Type() Type       { return TypeDouble }
func (v DoubleValue) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v BooleanValue) Type() Type      { return TypeBoolean }
func (v BooleanValue) String() string  { return strconv.FormatBool(bool(v)) }
func (v DateTimeValue) Type() Type     { return TypeDateTime }
func (v DateTimeValue) String() string { return v.UTC().Format(time.RFC3339Nano) }

func (v StringValue) appendKeyBytes(buf []byte, caseSensitive bool) []byte {
	if caseSensitive {
		return append(buf, string(v)...)
	}
	return append(buf, foldCase(string(v))...)
}

func (v IntegerValue) appendKeyBytes(buf []byte, _ bool) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v)^signBit)
}

func (v DoubleValue) appendKeyBytes(buf []byte, _ bool) []byte {
	return binary.BigEndian.AppendUint64(buf, orderedFloatBits(float64(v)))
}

func (v BooleanValue) appendKeyBytes(buf []byte, _ bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func (v DateTimeValue) appendKeyBytes(buf []byte, _ bool) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v.UnixNano())^signBit)
}

func orderedFloatBits(f float64) uint64 {
	if f == 0 {
		f = 0 // -0 and +0 share a key
	}
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

func floatFromOrderedBits(bits uint64) float64 {
	if bits&signBit != 0 {
		return math.Float64frombits(bits &^ signBit)
	}
	return math.Float64frombits(^bits)
}

// A Caser is stateful, so each call gets its own.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// NewDouble rejects NaN, which has no place in an ordered index.
func NewDouble(f float64) (DoubleValue, error) {
	if math.IsNaN(f) {
		return 0, unsupportedf("NaN cannot be used as an index key")
	}
	return DoubleValue(f), nil
}

func NewDateTime(t time.Time) (DateTimeValue, error) {
	if t.Year() < 1678 || t.Year() > 2261 {
		return DateTimeValue{}, unsupportedf("dateTime %v is outside of the indexable range", t)
	}
	return DateTimeValue{t.UTC()}, nil
}

// ValidateValue reports whether v can be used as an index key. Values made
// by NewDouble, NewDateTime and ConvertValue always can; literals such as
// DoubleValue(math.NaN()), an out-of-range DateTimeValue or a string that
// is not valid UTF-8 cannot.
func ValidateValue(v Value) error {
	switch v := v.(type) {
	case nil:
		return unsupportedf("nil value")
	case StringValue:
		if !utf8.ValidString(string(v)) {
			return unsupportedf("string %q is not valid UTF-8", string(v))
		}
	case DoubleValue:
		_, err := NewDouble(float64(v))
		return err
	case DateTimeValue:
		_, err := NewDateTime(v.Time)
		return err
	}
	return nil
}

// ConvertValue converts raw node text into a typed value of the given type.
func ConvertValue(typ Type, text string) (Value, error) {
	switch typ {
	case TypeString:
		if !utf8.ValidString(text) {
			return nil, unsupportedf("%q as %v: not valid UTF-8", text, typ)
		}
		return StringValue(text), nil
	case TypeInteger:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, unsupportedf("%q as %v: %v", text, typ, err)
		}
		return IntegerValue(v), nil
	case TypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, unsupportedf("%q as %v: %v", text, typ, err)
		}
		return NewDouble(f)
	case TypeBoolean:
		switch strings.TrimSpace(text) {
		case "true", "1":
			return BooleanValue(true), nil
		case "false", "0":
			return BooleanValue(false), nil
		default:
			return nil, unsupportedf("%q as %v", text, typ)
		}
	case TypeDateTime:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
		if err != nil {
			return nil, unsupportedf("%q as %v: %v", text, typ, err)
		}
		return NewDateTime(t)
	default:
		return nil, unsupportedf("%v cannot be used as an index key", typ)
	}
}

// CompareValues orders values first by type, then by value. With
// caseSensitive false, strings that fold to the same key compare equal.
func CompareValues(a, b Value, caseSensitive bool) int {
	if c := cmp.Compare(a.Type(), b.Type()); c != 0 {
		return c
	}
	switch a := a.(type) {
	case StringValue:
		b := b.(StringValue)
		if caseSensitive {
			return strings.Compare(string(a), string(b))
		}
		return strings.Compare(foldCase(string(a)), foldCase(string(b)))
	case IntegerValue:
		return cmp.Compare(a, b.(IntegerValue))
	case DoubleValue:
		return cmp.Compare(a, b.(DoubleValue))
	case BooleanValue:
		bv := b.(BooleanValue)
		if a == bv {
			return 0
		} else if !a {
			return -1
		}
		return 1
	case DateTimeValue:
		return a.Compare(b.(DateTimeValue).Time)
	default:
		panic(fmt.Errorf("unsupported value %T", a))
	}
}
