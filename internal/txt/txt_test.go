package txt

import (
	goerrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuafuller/svcinfo/internal/errors"
)

// TestDecode_KeyValuePairs checks the RFC 6763 §6.3 "key=value" layout.
func TestDecode_KeyValuePairs(t *testing.T) {
	got := Decode([]byte("\x03a=1\x03b=2"))

	assert.Equal(t, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, got)
}

func TestDecode_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want map[string][]byte
	}{
		{
			name: "empty payload",
			raw:  nil,
			want: map[string][]byte{},
		},
		{
			name: "single zero byte (RFC 6763 §6.1 empty TXT)",
			raw:  []byte{0x00},
			want: map[string][]byte{"": nil},
		},
		{
			name: "bare key is absent value",
			raw:  []byte("\x04flag"),
			want: map[string][]byte{"flag": nil},
		},
		{
			name: "empty value is absent value",
			raw:  []byte("\x02k="),
			want: map[string][]byte{"k": nil},
		},
		{
			name: "split on first equals only",
			raw:  []byte("\x05k=a=b"),
			want: map[string][]byte{"k": []byte("a=b")},
		},
		{
			name: "length byte overruns payload",
			raw:  []byte("\x03a=1\x09b=2"),
			want: map[string][]byte{"a": []byte("1"), "b": []byte("2")},
		},
		{
			name: "binary value kept verbatim",
			raw:  []byte{0x04, 'k', '=', 0xff, 0x00},
			want: map[string][]byte{"k": {0xff, 0x00}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.raw))
		})
	}
}

// TestDecode_FirstKeyWins pins the duplicate key rule: the earliest entry on
// the wire is kept (RFC 6763 §6.4).
func TestDecode_FirstKeyWins(t *testing.T) {
	got := Decode([]byte("\x03a=1\x03a=2\x01a"))

	require.Len(t, got, 1)
	assert.Equal(t, []byte("1"), got["a"])
}

func TestEncode_SortedAndPrefixed(t *testing.T) {
	raw, err := Encode(map[string][]byte{
		"path":    []byte("/api"),
		"version": []byte("1.0"),
		"secure":  nil,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("\x09path=/api\x06secure\x0bversion=1.0"), raw)
}

func TestEncode_Empty(t *testing.T) {
	raw, err := Encode(map[string][]byte{})
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestEncodeValues_Stringifies(t *testing.T) {
	raw, err := EncodeValues(map[string]any{
		"n":    42,
		"on":   true,
		"s":    "x",
		"b":    []byte{0x01},
		"none": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string][]byte{
		"n":    []byte("42"),
		"on":   []byte("true"),
		"s":    []byte("x"),
		"b":    {0x01},
		"none": nil,
	}, Decode(raw))
}

func TestEncodePairs_KeepsOrder(t *testing.T) {
	raw, err := EncodePairs([]Pair{{Key: "z", Value: []byte("1")}, {Key: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("\x03z=1\x01a"), raw)
}

func TestEncode_EntryTooLong(t *testing.T) {
	_, err := Encode(map[string][]byte{"k": []byte(strings.Repeat("v", 254))})
	require.Error(t, err)

	var wireErr *errors.WireFormatError
	assert.True(t, goerrors.As(err, &wireErr))

	// 1 + 1 + 253 = 255 is the largest legal entry.
	_, err = Encode(map[string][]byte{"k": []byte(strings.Repeat("v", 253))})
	assert.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	attrs := map[string][]byte{
		"txtvers": []byte("1"),
		"model":   []byte("LaserJet 400"),
		"duplex":  nil,
		"bin":     {0x00, 0x01, 0xfe},
	}

	raw, err := Encode(attrs)
	require.NoError(t, err)
	assert.Equal(t, attrs, Decode(raw))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, [][]byte{[]byte("a=1"), {}, []byte("b")}, Split([]byte("\x03a=1\x00\x01b")))
	assert.Nil(t, Split(nil))
}
