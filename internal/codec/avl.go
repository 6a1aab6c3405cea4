package codec

import (
	"fmt"
	"time"
)

const gpsPrecision = 10000000.0

func decodeRecords(avl []byte, n int) ([]AVLRecord, error) {
	c := NewCursor(avl)
	records := make([]AVLRecord, 0, n)
	for i := 0; i < n; i++ {
		start := c.Pos()
		rec, err := decodeRecord(c)
		if err != nil {
			return nil, fmt.Errorf("record %d at offset %d: %w", i, start, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecord reads one AVL record and leaves c at the start of the next.
//
//	[8 ts][1 prio][4 lon][4 lat][2 alt][2 angle][1 sat][2 speed][2 event][2 total][io groups]
func decodeRecord(c *Cursor) (AVLRecord, error) {
	var rec AVLRecord

	ts, err := c.Int(8)
	if err != nil {
		return rec, err
	}
	rec.Timestamp = time.UnixMilli(ts).UTC()
	if rec.Priority, err = c.Uint8(); err != nil {
		return rec, err
	}
	if rec.GPS, err = decodeGPS(c); err != nil {
		return rec, err
	}
	if rec.EventIOID, err = c.Uint16(); err != nil {
		return rec, err
	}
	if rec.TotalIO, err = c.Uint16(); err != nil {
		return rec, err
	}
	if rec.IO, err = decodeIO(c, rec.EventIOID, int(rec.TotalIO)); err != nil {
		return rec, err
	}
	return rec, nil
}

func decodeGPS(c *Cursor) (GPSData, error) {
	var g GPSData
	lon, err := c.Int(4)
	if err != nil {
		return g, err
	}
	lat, err := c.Int(4)
	if err != nil {
		return g, err
	}
	alt, err := c.Int(2)
	if err != nil {
		return g, err
	}
	angle, err := c.Int(2)
	if err != nil {
		return g, err
	}
	sats, err := c.Uint8()
	if err != nil {
		return g, err
	}
	speed, err := c.Int(2)
	if err != nil {
		return g, err
	}
	return GPSData{
		Longitude:  float64(lon) / gpsPrecision,
		Latitude:   float64(lat) / gpsPrecision,
		Altitude:   int32(alt),
		Angle:      int32(angle),
		Satellites: sats,
		Speed:      int32(speed),
	}, nil
}

// decodeIO walks the 1, 2, 4 and 8 byte groups until total elements are
// read. A started group is always read to its end. Groups that are never
// reached still carry a 2-byte count on the wire; those counts are skipped
// without being checked for zero, so a device reporting entries in an
// unreached group would desynchronize the records after it.
//
// The Codec 8E variable-length group follows. Its count is skipped when the
// total is already met and decoded otherwise.
func decodeIO(c *Cursor, eventID uint16, total int) ([]IOElement, error) {
	// The smallest element takes 3 bytes; total is device-controlled.
	elements := make([]IOElement, 0, min(total, c.Remaining()/3))

	group := 0
	for ; len(elements) < total && group < len(fixedWidths); group++ {
		width := fixedWidths[group]
		count, err := c.Uint16()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(count); i++ {
			id, err := c.Uint16()
			if err != nil {
				return nil, err
			}
			v, err := c.Int(int(width))
			if err != nil {
				return nil, err
			}
			elements = append(elements, newElement(id, width, v, eventID))
		}
	}
	for ; group < len(fixedWidths); group++ {
		if err := c.Skip(2); err != nil {
			return nil, err
		}
	}

	if len(elements) >= total {
		if err := c.Skip(2); err != nil {
			return nil, err
		}
		return elements, nil
	}

	count, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		el, err := decodeVariable(c, eventID)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	if len(elements) < total {
		return nil, fmt.Errorf("%w: declared %d, found %d", ErrIOCountMismatch, total, len(elements))
	}
	return elements, nil
}

// decodeVariable reads one NX entry: [u16 id][u16 len][len bytes].
func decodeVariable(c *Cursor, eventID uint16) (IOElement, error) {
	id, err := c.Uint16()
	if err != nil {
		return IOElement{}, err
	}
	n, err := c.Uint16()
	if err != nil {
		return IOElement{}, err
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return IOElement{}, err
	}
	if n >= 1 && n <= 8 {
		v, err := ReadInt(b, 0, int(n))
		if err != nil {
			return IOElement{}, err
		}
		return newElement(id, WidthVariable, v, eventID), nil
	}
	return IOElement{
		ID:    id,
		Width: WidthVariable,
		Event: id == eventID,
		Raw:   append([]byte(nil), b...),
	}, nil
}

func newElement(id uint16, width Width, v int64, eventID uint16) IOElement {
	el := IOElement{
		ID:    id,
		Width: width,
		Value: v,
		Event: id == eventID,
	}
	if id == IOPackedA || id == IOPackedB {
		el.Packed = true
		el.SubID, el.SubValue = Unpack(v)
	}
	return el
}

// Unpack splits a 145/146 value into its low 16-bit sub id and the
// remaining high bits, whatever width the value was sent with.
func Unpack(v int64) (subID uint16, subValue int64) {
	return uint16(v & 0xFFFF), v >> 16
}
