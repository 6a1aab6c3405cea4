package pipeline

import (
	"context"
	"time"
)

// Measurement is one time-series point handed to a Sink.
type Measurement struct {
	Name   string            `json:"name"`
	Tags   map[string]string `json:"tags"`
	Fields map[string]any    `json:"fields"`
	Time   time.Time         `json:"time"`
}

// Sink durably records measurements.
type Sink interface {
	Write(ctx context.Context, ms []Measurement) error
}

// Status is the connection lifecycle state reported under StatusMeasurement.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

const StatusMeasurement = "TCPStatus"

// Tag and field keys of record measurements.
const (
	TagIPAddress = "IPAddress"
	TagIOID      = "ioID"
	TagEvent     = "event"
	TagPriority  = "priority"
	TagDataID    = "dataId"

	FieldIOValue    = "ioValue"
	FieldDecodeData = "decodeData"
	FieldLongitude  = "longitude"
	FieldLatitude   = "latitude"
	FieldAltitude   = "altitude"
	FieldAngle      = "angle"
	FieldSatellites = "satellites"
	FieldSpeed      = "speed"
	FieldStoredTime = "storedTime"

	// FieldIORaw holds NX values wider than 8 bytes as hex; their ioValue is 0.
	FieldIORaw = "ioRaw"
)
