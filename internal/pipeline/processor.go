package pipeline

import (
	"encoding/hex"
	"strconv"
	"time"

	"avl-gateway/internal/codec"
)

// BuildRecords turns decoded records into one measurement per IO element,
// named after the device and stamped with the record time. Every point
// repeats the record's GPS fix so it can be queried on its own.
func BuildRecords(imei, remoteIP string, records []codec.AVLRecord, stored time.Time) []Measurement {
	n := 0
	for _, rec := range records {
		n += len(rec.IO)
	}
	out := make([]Measurement, 0, n)
	storedTime := stored.UTC().Format(time.RFC3339Nano)

	for _, rec := range records {
		for _, io := range rec.IO {
			var dataID, decodeData int64
			if io.Packed {
				dataID, decodeData = int64(io.SubID), io.SubValue
			}
			fields := map[string]any{
				FieldIOValue:    io.Value,
				FieldDecodeData: decodeData,
				FieldLongitude:  rec.GPS.Longitude,
				FieldLatitude:   rec.GPS.Latitude,
				FieldAltitude:   int64(rec.GPS.Altitude),
				FieldAngle:      int64(rec.GPS.Angle),
				FieldSatellites: int64(rec.GPS.Satellites),
				FieldSpeed:      int64(rec.GPS.Speed),
				FieldStoredTime: storedTime,
			}
			if io.Raw != nil {
				fields[FieldIORaw] = hex.EncodeToString(io.Raw)
			}
			out = append(out, Measurement{
				Name: imei,
				Tags: map[string]string{
					TagIPAddress: remoteIP,
					TagIOID:      strconv.Itoa(int(io.ID)),
					TagEvent:     strconv.FormatBool(io.Event),
					TagPriority:  strconv.Itoa(int(rec.Priority)),
					TagDataID:    strconv.FormatInt(dataID, 10),
				},
				Fields: fields,
				Time:   rec.Timestamp,
			})
		}
	}
	return out
}

// BuildStatus reports a device going online or offline on a connection.
func BuildStatus(imei, remoteIP string, remotePort int, status Status, at time.Time) Measurement {
	return Measurement{
		Name: StatusMeasurement,
		Tags: map[string]string{"imei": imei},
		Fields: map[string]any{
			"status":     string(status),
			TagIPAddress: remoteIP,
			"port":       int64(remotePort),
		},
		Time: at,
	}
}
