package slip

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", []byte{}, []byte{End}},
		{"plain", []byte{0x2A, 0x01}, []byte{0x2A, 0x01, End}},
		{"end", []byte{End}, []byte{Esc, EscEnd, End}},
		{"esc", []byte{Esc}, []byte{Esc, EscEsc, End}},
		{"esc then esc_end", []byte{Esc, EscEnd}, []byte{Esc, EscEsc, EscEnd, End}},
		{"init message", []byte{0x2A, 0x0A, 0x0A}, []byte{0x2A, Esc, EscEnd, Esc, EscEnd, End}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"frame", []byte{0x2A, 0x01, 0x02, End}, []byte{0x2A, 0x01, 0x02}},
		{"escaped esc", []byte{Esc, EscEsc, End}, []byte{Esc}},
		{"escaped end", []byte{0x01, Esc, EscEnd, 0x02, End}, []byte{0x01, End, 0x02}},
		{"leading and trailing ends", []byte{End, End, 0x01, End, End}, []byte{0x01}},
		{"only ends", []byte{End, End}, []byte{}},
		{"dangling esc", []byte{0x01, Esc, End}, []byte{0x01, Esc}},
		{"unknown escape", []byte{Esc, 0x42, End}, []byte{Esc, 0x42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.in))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	special := []byte{End, Esc, EscEnd, EscEsc}

	for i := 0; i < 2000; i++ {
		b := make([]byte, rnd.Intn(64))
		for j := range b {
			if rnd.Intn(3) == 0 {
				b[j] = special[rnd.Intn(len(special))]
			} else {
				b[j] = byte(rnd.Intn(256))
			}
		}
		require.Equal(t, b, Decode(Encode(b)), "input %x", b)
	}
}

func TestEncodeNeverLeaksReservedBytes(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	enc := Encode(all)

	require.Equal(t, End, enc[len(enc)-1])
	body := enc[:len(enc)-1]
	assert.Equal(t, -1, bytes.IndexByte(body, End))
	for i := 0; i < len(body); i++ {
		if body[i] == Esc {
			require.Less(t, i+1, len(body))
			assert.Contains(t, []byte{EscEnd, EscEsc}, body[i+1])
			i++
		}
	}
}
