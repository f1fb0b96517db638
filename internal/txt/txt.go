// Package txt encodes and decodes DNS-SD TXT attribute payloads.
//
// RFC 6763 §6: a TXT record is a sequence of length-prefixed strings, each
// holding "key" or "key=value". Values are opaque bytes.
package txt

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/joshuafuller/svcinfo/internal/errors"
)

// MaxEntryLen is the largest single "key=value" string a length byte can describe.
const MaxEntryLen = 255

// Pair is one attribute in an explicitly ordered payload. A nil Value encodes
// the bare key.
type Pair struct {
	Key   string
	Value []byte
}

// Encode builds a payload from attrs. Entries are written in sorted key order.
func Encode(attrs map[string][]byte) ([]byte, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: attrs[k]})
	}
	return EncodePairs(pairs)
}

// EncodeValues stringifies each value and encodes the result. Strings and byte
// slices are taken as is, nil means key only and anything else goes through
// fmt.Sprint.
func EncodeValues(attrs map[string]any) ([]byte, error) {
	converted := make(map[string][]byte, len(attrs))
	for k, v := range attrs {
		converted[k] = valueBytes(v)
	}
	return Encode(converted)
}

func valueBytes(v any) []byte {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if val == nil {
			return nil
		}
		return val
	case string:
		return []byte(val)
	default:
		return []byte(fmt.Sprint(val))
	}
}

// EncodePairs encodes pairs in the order given.
func EncodePairs(pairs []Pair) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range pairs {
		entryLen := len(p.Key)
		if p.Value != nil {
			entryLen += 1 + len(p.Value)
		}
		if entryLen > MaxEntryLen {
			return nil, &errors.WireFormatError{
				Operation: "encode txt",
				Offset:    buf.Len(),
				Message:   fmt.Sprintf("entry %q is %d bytes, limit is %d", p.Key, entryLen, MaxEntryLen),
			}
		}
		buf.WriteByte(byte(entryLen))
		buf.WriteString(p.Key)
		if p.Value != nil {
			buf.WriteByte('=')
			buf.Write(p.Value)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a payload into attributes.
//
// A key without "=" or with an empty value maps to nil. When a key repeats,
// the first occurrence on the wire wins. A length byte that runs past the end
// of the payload yields whatever bytes remain.
func Decode(raw []byte) map[string][]byte {
	attrs := make(map[string][]byte)
	for _, entry := range Split(raw) {
		key, value, found := bytes.Cut(entry, []byte("="))
		if !found || len(value) == 0 {
			value = nil
		} else {
			value = bytes.Clone(value)
		}
		if _, dup := attrs[string(key)]; dup {
			continue
		}
		attrs[string(key)] = value
	}
	return attrs
}

// Split returns the length-prefixed strings of raw, truncating the last one if
// its length byte overstates the remaining input.
func Split(raw []byte) [][]byte {
	var entries [][]byte
	for i := 0; i < len(raw); {
		n := int(raw[i])
		i++
		end := i + n
		if end > len(raw) {
			end = len(raw)
		}
		entries = append(entries, raw[i:end])
		i = end
	}
	return entries
}
