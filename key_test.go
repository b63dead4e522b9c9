package xmlidx

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSerializeKey_RoundTrip(t *testing.T) {
	values := []Value{
		StringValue(""),
		StringValue("apple"),
		StringValue("naïve"),
		IntegerValue(0),
		IntegerValue(-1),
		IntegerValue(math.MinInt64),
		IntegerValue(math.MaxInt64),
		DoubleValue(0),
		DoubleValue(-2.5),
		DoubleValue(math.Inf(1)),
		DoubleValue(math.Inf(-1)),
		DoubleValue(math.SmallestNonzeroFloat64),
		BooleanValue(false),
		BooleanValue(true),
		DateTimeValue{time.Date(2024, 2, 29, 12, 30, 0, 123456789, time.UTC)},
		DateTimeValue{time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, v := range values {
		key := SerializeKey(v, 42, true)
		got, cid, err := DeserializeKey(key)
		if err != nil {
			t.Errorf("DeserializeKey(%v) failed: %v", v, err)
			continue
		}
		if cid != 42 {
			t.Errorf("DeserializeKey(%v) cid = %d, wanted 42", v, cid)
		}
		if CompareValues(got, v, true) != 0 {
			t.Errorf("DeserializeKey(SerializeKey(%v)) = %v", v, got)
		}
		if !bytes.HasPrefix(key, PrefixKey(v.Type(), 42)) {
			t.Errorf("key %x lacks prefix", key)
		}
	}
}

func TestSerializeKey_Ordering(t *testing.T) {
	groups := [][]Value{
		{StringValue(""), StringValue("a"), StringValue("apple"), StringValue("b"), StringValue("banana")},
		{IntegerValue(math.MinInt64), IntegerValue(-100), IntegerValue(-1), IntegerValue(0), IntegerValue(1), IntegerValue(math.MaxInt64)},
		{DoubleValue(math.Inf(-1)), DoubleValue(-1e10), DoubleValue(-0.5), DoubleValue(0), DoubleValue(1e-300), DoubleValue(0.5), DoubleValue(3), DoubleValue(math.Inf(1))},
		{BooleanValue(false), BooleanValue(true)},
		{
			DateTimeValue{time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)},
			DateTimeValue{time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)},
			DateTimeValue{time.Date(1970, 1, 1, 0, 0, 0, 1, time.UTC)},
			DateTimeValue{time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	for _, values := range groups {
		for i := 1; i < len(values); i++ {
			a, b := values[i-1], values[i]
			if CompareValues(a, b, true) >= 0 {
				t.Errorf("CompareValues(%v, %v) >= 0", a, b)
			}
			ka, kb := SerializeKey(a, 1, true), SerializeKey(b, 1, true)
			if bytes.Compare(ka, kb) >= 0 {
				t.Errorf("key(%v) = %x >= key(%v) = %x", a, ka, b, kb)
			}
		}
	}
}

func TestSerializeKey_NegativeZero(t *testing.T) {
	neg := SerializeKey(DoubleValue(math.Copysign(0, -1)), 1, true)
	pos := SerializeKey(DoubleValue(0), 1, true)
	if !bytes.Equal(neg, pos) {
		t.Fatalf("-0 = %x, +0 = %x, wanted equal", neg, pos)
	}
}

func TestSerializeKey_CaseFolding(t *testing.T) {
	a := SerializeKey(StringValue("Apple"), 1, false)
	b := SerializeKey(StringValue("APPLE"), 1, false)
	if !bytes.Equal(a, b) {
		t.Fatalf("folded keys differ: %x vs %x", a, b)
	}
	if bytes.Equal(SerializeKey(StringValue("Apple"), 1, true), SerializeKey(StringValue("apple"), 1, true)) {
		t.Fatalf("case-sensitive keys must differ")
	}
	if CompareValues(StringValue("Apple"), StringValue("aPPLE"), false) != 0 {
		t.Fatalf("case-insensitive compare must treat values as equal")
	}
}

func TestSerializeKey_CollectionScope(t *testing.T) {
	k1 := SerializeKey(StringValue("zzz"), 1, true)
	k2 := SerializeKey(StringValue("aaa"), 2, true)
	if bytes.Compare(k1, k2) >= 0 {
		t.Fatalf("collection 1 keys must sort before collection 2")
	}
	if !bytes.Equal(CollectionPrefix(0x0102), []byte{1, 2}) {
		t.Fatalf("CollectionPrefix = %x", CollectionPrefix(0x0102))
	}
	if !bytes.Equal(PrefixKey(TypeDouble, 0x0102), []byte{1, 2, byte(TypeDouble)}) {
		t.Fatalf("PrefixKey = %x", PrefixKey(TypeDouble, 0x0102))
	}
}

func TestDeserializeKey_Malformed(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"short", []byte{0, 1}},
		{"integer length", []byte{0, 1, byte(TypeInteger), 1, 2}},
		{"double length", []byte{0, 1, byte(TypeDouble)}},
		{"boolean value", []byte{0, 1, byte(TypeBoolean), 2}},
		{"dateTime length", []byte{0, 1, byte(TypeDateTime), 1}},
		{"invalid utf8", []byte{0, 1, byte(TypeString), 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DeserializeKey(tt.key)
			var de *DataError
			if !errors.As(err, &de) {
				t.Fatalf("err = %T %v, wanted *DataError", err, err)
			}
		})
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		typ  Type
		text string
		want Value
	}{
		{TypeString, " a b ", StringValue(" a b ")},
		{TypeInteger, " 42 ", IntegerValue(42)},
		{TypeInteger, "-7", IntegerValue(-7)},
		{TypeDouble, "2.5", DoubleValue(2.5)},
		{TypeBoolean, "true", BooleanValue(true)},
		{TypeBoolean, "0", BooleanValue(false)},
		{TypeDateTime, "2024-01-02T03:04:05Z", DateTimeValue{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}},
	}
	for _, tt := range tests {
		got, err := ConvertValue(tt.typ, tt.text)
		if err != nil {
			t.Errorf("ConvertValue(%v, %q) failed: %v", tt.typ, tt.text, err)
			continue
		}
		if CompareValues(got, tt.want, true) != 0 {
			t.Errorf("ConvertValue(%v, %q) = %v, wanted %v", tt.typ, tt.text, got, tt.want)
		}
	}

	bad := []struct {
		typ  Type
		text string
	}{
		{TypeInteger, "abc"},
		{TypeDouble, "NaN"},
		{TypeBoolean, "yes"},
		{TypeDateTime, "yesterday"},
		{TypeDateTime, "3000-01-01T00:00:00Z"},
		{Type(99), "x"},
	}
	for _, tt := range bad {
		if _, err := ConvertValue(tt.typ, tt.text); !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("ConvertValue(%v, %q) err = %v, wanted ErrUnsupportedValue", tt.typ, tt.text, err)
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{TypeString, TypeInteger, TypeDouble, TypeBoolean, TypeDateTime} {
		deepEqual(t, must(ParseType(typ.String())), typ)
	}
	deepEqual(t, must(ParseType("DATETIME")), TypeDateTime)
	if _, err := ParseType("decimal"); err == nil {
		t.Errorf("ParseType(decimal) succeeded")
	}
}
