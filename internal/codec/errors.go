package codec

import "errors"

var (
	// ErrOutOfRange is returned when a field would be read past the end of
	// the buffer, i.e. the frame is truncated or its lengths are corrupt.
	ErrOutOfRange = errors.New("out of range")
	// ErrCRCMismatch means the trailing CRC does not match the data field.
	ErrCRCMismatch = errors.New("crc mismatch")
	// ErrUnsupportedCodec means the codec id is not 0x8E.
	ErrUnsupportedCodec = errors.New("unsupported codec")
	// ErrRecordCountMismatch means the leading and trailing record counts differ.
	ErrRecordCountMismatch = errors.New("record count mismatch")
	// ErrIOCountMismatch means the width groups of a record hold fewer IO
	// elements than the record header declares.
	ErrIOCountMismatch = errors.New("io count mismatch")
	// ErrIMEILength is returned for handshakes whose declared length is not
	// an IMEI. Callers drop these frames without logging them as failures.
	ErrIMEILength = errors.New("declared length is not an imei")
)
