package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeHandshake builds the identification frame a device sends first.
func EncodeHandshake(imei string) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(imei)))
	return append(out, imei...)
}

// EncodeDataFrame builds a Codec 8E data frame with an honest CRC. IO
// elements are placed in the group matching their Width, keeping their
// relative order.
func EncodeDataFrame(records []AVLRecord) ([]byte, error) {
	if len(records) > math.MaxUint8 {
		return nil, fmt.Errorf("too many records: %d", len(records))
	}
	payload := []byte{Codec8E, uint8(len(records))}
	for i := range records {
		var err error
		payload, err = appendRecord(payload, &records[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	payload = append(payload, uint8(len(records)))

	out := make([]byte, 0, 8+len(payload)+4)
	out = append(out, 0, 0, 0, 0)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, uint32(CRC16(payload)))
	return out, nil
}

func appendRecord(out []byte, r *AVLRecord) ([]byte, error) {
	out = binary.BigEndian.AppendUint64(out, uint64(r.Timestamp.UnixMilli()))
	out = append(out, r.Priority)
	out = binary.BigEndian.AppendUint32(out, uint32(int32(math.Round(r.GPS.Longitude*gpsPrecision))))
	out = binary.BigEndian.AppendUint32(out, uint32(int32(math.Round(r.GPS.Latitude*gpsPrecision))))
	out = binary.BigEndian.AppendUint16(out, uint16(r.GPS.Altitude))
	out = binary.BigEndian.AppendUint16(out, uint16(r.GPS.Angle))
	out = append(out, r.GPS.Satellites)
	out = binary.BigEndian.AppendUint16(out, uint16(r.GPS.Speed))
	out = binary.BigEndian.AppendUint16(out, r.EventIOID)
	out = binary.BigEndian.AppendUint16(out, uint16(len(r.IO)))

	groups := make(map[Width][]byte)
	counts := make(map[Width]uint16)
	for _, el := range r.IO {
		var entry []byte
		entry = binary.BigEndian.AppendUint16(entry, el.ID)
		switch el.Width {
		case Width1, Width2, Width4, Width8:
			entry = appendInt(entry, el.Value, int(el.Width))
		case WidthVariable:
			value := el.Raw
			if value == nil {
				value = appendInt(nil, el.Value, 8)
			}
			entry = binary.BigEndian.AppendUint16(entry, uint16(len(value)))
			entry = append(entry, value...)
		default:
			return nil, fmt.Errorf("io %d: unsupported width %d", el.ID, el.Width)
		}
		groups[el.Width] = append(groups[el.Width], entry...)
		counts[el.Width]++
	}
	for _, w := range fixedWidths {
		out = binary.BigEndian.AppendUint16(out, counts[w])
		out = append(out, groups[w]...)
	}
	out = binary.BigEndian.AppendUint16(out, counts[WidthVariable])
	return append(out, groups[WidthVariable]...), nil
}

// appendInt appends the low width bytes of v, big-endian.
func appendInt(out []byte, v int64, width int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return append(out, buf[8-width:]...)
}
