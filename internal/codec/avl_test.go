package codec

import (
	"encoding/hex"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ioCursor(t *testing.T, s string) *Cursor {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	require.NoError(t, err)
	return NewCursor(b)
}

func TestPackedIDsUnpackAtEveryWidth(t *testing.T) {
	tests := []struct {
		name   string
		io     string
		width  Width
		value  int64
		subID  uint16
		subVal int64
	}{
		{"2 bytes", "0000 0001 0091 1234 0000 0000 0000", Width2, 0x1234, 0x1234, 0},
		{"4 bytes", "0000 0000 0001 0092 0007ABCD 0000 0000", Width4, 0x0007ABCD, 0xABCD, 7},
		{"8 bytes", "0000 0000 0000 0001 0091 00000000DEADBEEF 0000", Width8, 0xDEADBEEF, 0xBEEF, 0xDEAD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements, err := decodeIO(ioCursor(t, tt.io), 0, 1)
			require.NoError(t, err)
			require.Len(t, elements, 1)

			el := elements[0]
			assert.Equal(t, tt.width, el.Width)
			assert.Equal(t, tt.value, el.Value)
			assert.True(t, el.Packed)
			assert.Equal(t, tt.subID, el.SubID)
			assert.Equal(t, tt.subVal, el.SubValue)
		})
	}
}

func TestOtherIDsPassThrough(t *testing.T) {
	elements, err := decodeIO(ioCursor(t, "0000 0000 0001 0042 0007ABCD 0000 0000"), 0x42, 1)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, IOElement{ID: 0x42, Width: Width4, Value: 0x0007ABCD, Event: true}, elements[0])
}

func TestUnpack(t *testing.T) {
	id, v := Unpack(0x0012_0034)
	assert.Equal(t, uint16(0x34), id)
	assert.Equal(t, int64(0x12), v)

	// Negative values shift arithmetically.
	id, v = Unpack(-1)
	assert.Equal(t, uint16(0xFFFF), id)
	assert.Equal(t, int64(-1), v)
}

func TestUnreachedGroupCountsAreSkippedUnchecked(t *testing.T) {
	// The total is met inside the 1-byte group; the 2-byte group then claims
	// five entries, but only its count field is consumed.
	c := ioCursor(t, "0001 0015 03 0005 0000 0000 0000 FFFF")
	elements, err := decodeIO(c, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []IOElement{{ID: 0x15, Width: Width1, Value: 3}}, elements)
	assert.Equal(t, 13, c.Pos())
}

func TestStartedGroupIsReadToItsEnd(t *testing.T) {
	c := ioCursor(t, "0002 0001 01 0002 00 0000 0000 0000 0000")
	elements, err := decodeIO(c, 0, 1)
	require.NoError(t, err)
	assert.Len(t, elements, 2)
	assert.Equal(t, 16, c.Pos())
}

func TestEmptyIOBlock(t *testing.T) {
	c := ioCursor(t, "0000 0000 0000 0000 0000")
	elements, err := decodeIO(c, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, elements)
	assert.Equal(t, 10, c.Pos())
}

func TestVariableGroup(t *testing.T) {
	c := ioCursor(t, `
		0001 00EF 01
		0000 0000 0000
		0002
		0181 0002 00FF
		0182 000A 00112233445566778899`)
	elements, err := decodeIO(c, 0x0182, 3)
	require.NoError(t, err)
	require.Len(t, elements, 3)

	assert.Equal(t, IOElement{ID: 0x0181, Width: WidthVariable, Value: 255}, elements[1])
	assert.Equal(t, uint16(0x0182), elements[2].ID)
	assert.True(t, elements[2].Event)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99}, elements[2].Raw)
	assert.Zero(t, c.Remaining())
}

func TestIOCountMismatch(t *testing.T) {
	_, err := decodeIO(ioCursor(t, "0001 0001 01 0000 0000 0000 0000"), 0, 3)
	assert.ErrorIs(t, err, ErrIOCountMismatch)
}

func TestIOTruncated(t *testing.T) {
	_, err := decodeIO(ioCursor(t, "0001 0001"), 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// Unreached group counts must still be present.
	_, err = decodeIO(ioCursor(t, "0001 0001 01 0000"), 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestVariableGroupSignedValues(t *testing.T) {
	c := ioCursor(t, `
		0000 0000 0000 0000
		0002
		0181 0008 FFFFFFFFFFFFFFFF
		0182 0003 FFFFFE`)
	elements, err := decodeIO(c, 0, 2)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, int64(-1), elements[0].Value)
	assert.Equal(t, int64(-2), elements[1].Value)
	assert.Nil(t, elements[0].Raw)
}

func TestHugeDeclaredTotalDoesNotPreallocate(t *testing.T) {
	c := ioCursor(t, "0001 0001 01 0000 0000 0000 0000")

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := decodeIO(c, 0, 0xFFFF)
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, ErrIOCountMismatch)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}
