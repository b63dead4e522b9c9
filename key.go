package xmlidx

import (
	"encoding/binary"
	"time"
	"unicode/utf8"
)

// Key layout: collectionID:16 typeTag:8 value-bytes*
const keyPrefixLen = 3

// SerializeKey returns the stored key of value within the given collection.
func SerializeKey(value Value, cid CollectionID, caseSensitive bool) []byte {
	buf := PrefixKey(value.Type(), cid)
	return value.appendKeyBytes(buf, caseSensitive)
}

// PrefixKey returns the 3-byte prefix shared by all keys of the given type
// within a collection.
func PrefixKey(typ Type, cid CollectionID) []byte {
	buf := make([]byte, keyPrefixLen, keyPrefixLen+16)
	binary.BigEndian.PutUint16(buf, uint16(cid))
	buf[2] = byte(typ)
	return buf
}

// CollectionPrefix returns the 2-byte prefix shared by all keys of a collection.
func CollectionPrefix(cid CollectionID) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(cid))
}

// DeserializeKey decodes a stored key back into its value and collection.
func DeserializeKey(key []byte) (Value, CollectionID, error) {
	if len(key) < keyPrefixLen {
		return nil, 0, dataErrf(key, len(key), nil, "index key too short")
	}
	d := makeByteDecoder(key)
	rawCID, _ := d.Uint16()
	tagByte, _ := d.Raw(1)
	cid, tag := CollectionID(rawCID), tagByte[0]

	switch Type(tag) {
	case TypeString:
		if !utf8.Valid(d.Buf) {
			return nil, cid, dataErrf(key, keyPrefixLen, nil, "string key is not valid UTF-8")
		}
		return StringValue(d.Buf), cid, nil
	case TypeBoolean:
		if d.Remaining() != 1 || d.Buf[0] > 1 {
			return nil, cid, dataErrf(key, keyPrefixLen, nil, "invalid boolean key")
		}
		return BooleanValue(d.Buf[0] == 1), cid, nil
	case TypeInteger, TypeDouble, TypeDateTime:
		if d.Remaining() != 8 {
			return nil, cid, dataErrf(key, keyPrefixLen, nil, "%v key must have 8 bytes, got %d", Type(tag), d.Remaining())
		}
		bits, err := d.Uint64()
		if err != nil {
			return nil, cid, err
		}
		switch Type(tag) {
		case TypeInteger:
			return IntegerValue(int64(bits ^ signBit)), cid, nil
		case TypeDouble:
			return DoubleValue(floatFromOrderedBits(bits)), cid, nil
		default:
			return DateTimeValue{time.Unix(0, int64(bits^signBit)).UTC()}, cid, nil
		}
	default:
		return nil, cid, &DecodeError{Key: key, Tag: tag}
	}
}

// keyType returns the type tag of a stored key without decoding the value.
func keyType(key []byte) Type {
	if len(key) < keyPrefixLen {
		return 0
	}
	return Type(key[2])
}
