package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIntSignExtension(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"1 byte positive", []byte{0x7F}, 127},
		{"1 byte negative", []byte{0xFF}, -1},
		{"2 bytes", []byte{0x12, 0x34}, 0x1234},
		{"2 bytes negative", []byte{0xFF, 0xFE}, -2},
		{"4 bytes negative", []byte{0xF0, 0x00, 0x00, 0x00}, -268435456},
		{"6 bytes", []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, 1 << 24},
		{"7 bytes negative", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, -1},
		{"8 bytes timestamp", []byte{0x00, 0x00, 0x01, 0x8B, 0xCF, 0xE5, 0x68, 0x00}, 1700000000000},
		{"8 bytes negative", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadInt(tt.data, 0, len(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadOutOfRange(t *testing.T) {
	data := []byte{1, 2, 3}

	_, err := Read(data, 2, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ReadInt(data, 0, 9)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ReadInt(data, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	b, err := Read(data, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, b)
}

func TestCursorAdvancesOnlyOnSuccess(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x0F, 0xAA})

	v, err := c.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(15), v)
	assert.Equal(t, 2, c.Pos())

	_, err = c.Uint16()
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 2, c.Pos())
	assert.Equal(t, 1, c.Remaining())

	b, err := c.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAA), b)
	assert.Zero(t, c.Remaining())
}

func TestCRC16(t *testing.T) {
	// CRC-16/ARC check value.
	assert.Equal(t, uint16(0xBB3D), CRC16([]byte("123456789")))
	assert.Equal(t, uint16(0), CRC16(nil))
}
