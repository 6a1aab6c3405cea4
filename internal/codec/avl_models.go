package codec

import "time"

const (
	// Codec8E is the only data codec the gateway accepts.
	Codec8E uint8 = 0x8E
	// IMEILength is the only handshake length the gateway answers.
	IMEILength = 15

	// IO ids whose 32-bit payload packs a 16-bit sub id below a sub value.
	IOPackedA uint16 = 145
	IOPackedB uint16 = 146
)

// FrameKind is decided by the 4-byte preamble.
type FrameKind int

const (
	FrameHandshake FrameKind = iota
	FrameData
)

func (k FrameKind) String() string {
	if k == FrameData {
		return "data"
	}
	return "handshake"
}

// Width is the byte width of an IO value. WidthVariable marks entries of
// the Codec 8E NX group, which carry their own length.
type Width int

const (
	WidthVariable Width = 0
	Width1        Width = 1
	Width2        Width = 2
	Width4        Width = 4
	Width8        Width = 8
)

// fixedWidths is the order width groups appear in on the wire.
var fixedWidths = [...]Width{Width1, Width2, Width4, Width8}

type Handshake struct {
	DeclaredLength uint16 `json:"declared_length"`
	IMEI           string `json:"imei"`
}

type IOElement struct {
	ID    uint16 `json:"id"`
	Width Width  `json:"width"`
	Value int64  `json:"value"`
	// Event is set when ID is the record's event IO id.
	Event bool `json:"event"`
	// Packed is set for ids 145 and 146, where SubID and SubValue hold the
	// unpacked halves of Value.
	Packed   bool   `json:"packed,omitempty"`
	SubID    uint16 `json:"sub_id,omitempty"`
	SubValue int64  `json:"sub_value,omitempty"`
	// Raw holds NX values wider than 8 bytes.
	Raw []byte `json:"raw,omitempty"`
}

type GPSData struct {
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
	Altitude   int32   `json:"altitude"`
	Angle      int32   `json:"angle"`
	Satellites uint8   `json:"satellites"`
	Speed      int32   `json:"speed"`
}

type AVLRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Priority  uint8       `json:"priority"`
	GPS       GPSData     `json:"gps"`
	EventIOID uint16      `json:"event_io_id"`
	TotalIO   uint16      `json:"total_io"`
	IO        []IOElement `json:"io"`
}

type AvlPacket struct {
	DataFieldLength uint32      `json:"data_len"`
	CodecID         uint8       `json:"codec_id"`
	Qty1            uint8       `json:"qty1"`
	Records         []AVLRecord `json:"records"`
	Qty2            uint8       `json:"qty2"`
	CRC             uint32      `json:"crc"`
}
