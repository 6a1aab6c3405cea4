package dispatcher

import (
	"errors"

	"avl-gateway/internal/codec"
)

var (
	// ErrUnauthenticated is returned for data frames on a connection that
	// has no accepted handshake.
	ErrUnauthenticated         = errors.New("unauthenticated connection")
	ErrRegistryUnavailable     = errors.New("device registry rejected or unavailable")
	ErrSinkUnavailable         = errors.New("measurement sink unavailable")
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
)

// Kind maps an error to a stable label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, codec.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, codec.ErrCRCMismatch):
		return "crc_mismatch"
	case errors.Is(err, codec.ErrUnsupportedCodec):
		return "unsupported_codec"
	case errors.Is(err, codec.ErrRecordCountMismatch):
		return "record_count_mismatch"
	case errors.Is(err, codec.ErrIOCountMismatch):
		return "io_count_mismatch"
	case errors.Is(err, codec.ErrIMEILength):
		return "imei_length"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrRegistryUnavailable):
		return "registry_unavailable"
	case errors.Is(err, ErrSinkUnavailable):
		return "sink_unavailable"
	case errors.Is(err, ErrSessionStoreUnavailable):
		return "session_store_unavailable"
	}
	return "other"
}
