package codec

import (
	"encoding/binary"
	"fmt"
)

// Classify tells a handshake from a data frame by its preamble: data frames
// start with four zero bytes, anything else is read as an IMEI handshake.
func Classify(data []byte) (FrameKind, error) {
	preamble, err := Read(data, 0, 4)
	if err != nil {
		return 0, err
	}
	if binary.BigEndian.Uint32(preamble) == 0 {
		return FrameData, nil
	}
	return FrameHandshake, nil
}

// DecodeHandshake parses [u16 length][length ASCII bytes]. Lengths other
// than 15 yield ErrIMEILength; bytes after the IMEI are ignored.
func DecodeHandshake(data []byte) (Handshake, error) {
	c := NewCursor(data)
	n, err := c.Uint16()
	if err != nil {
		return Handshake{}, err
	}
	if n != IMEILength {
		return Handshake{DeclaredLength: n}, fmt.Errorf("%w: %d", ErrIMEILength, n)
	}
	id, err := c.Bytes(int(n))
	if err != nil {
		return Handshake{DeclaredLength: n}, err
	}
	return Handshake{DeclaredLength: n, IMEI: string(id)}, nil
}

// DecodeDataFrame validates the envelope of a Codec 8E data frame and
// decodes all of its records. Nothing is returned unless every check passes.
//
//	[00 00 00 00][u32 len][codec][n][records...][n][u32 crc]
func DecodeDataFrame(data []byte) (*AvlPacket, error) {
	c := NewCursor(data)
	if err := c.Skip(4); err != nil {
		return nil, err
	}
	length, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < 8+uint64(length)+4 {
		return nil, fmt.Errorf("%w: data field of %d bytes does not fit frame of %d bytes", ErrOutOfRange, length, len(data))
	}
	mainData, err := c.Bytes(int(length))
	if err != nil {
		return nil, err
	}

	crc := binary.BigEndian.Uint32(data[len(data)-4:])
	if sum := CRC16(mainData); uint16(crc) != sum {
		return nil, fmt.Errorf("%w: frame carries %04x, computed %04x", ErrCRCMismatch, uint16(crc), sum)
	}

	if len(mainData) < 3 {
		return nil, fmt.Errorf("%w: data field of %d bytes is too short", ErrOutOfRange, len(mainData))
	}
	if mainData[0] != Codec8E {
		return nil, fmt.Errorf("%w: %#02x", ErrUnsupportedCodec, mainData[0])
	}
	start, end := mainData[1], mainData[len(mainData)-1]
	if start != end {
		return nil, fmt.Errorf("%w: %d at start, %d at end", ErrRecordCountMismatch, start, end)
	}

	records, err := decodeRecords(mainData[2:len(mainData)-1], int(start))
	if err != nil {
		return nil, err
	}
	return &AvlPacket{
		DataFieldLength: length,
		CodecID:         mainData[0],
		Qty1:            start,
		Records:         records,
		Qty2:            end,
		CRC:             crc,
	}, nil
}

// Ack is the reply to an accepted data frame: the record count the device
// may drop from its buffer.
func Ack(records uint8) []byte {
	return []byte{0x00, 0x00, 0x00, records}
}

// HandshakeAck is the single byte that accepts an IMEI.
var HandshakeAck = []byte{0x01}
