package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avl-gateway/internal/codec"
)

func TestBuildRecords(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	stored := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	records := []codec.AVLRecord{{
		Timestamp: ts,
		Priority:  2,
		GPS:       codec.GPSData{Longitude: 25.1, Latitude: 54.2, Altitude: 120, Angle: 90, Satellites: 9, Speed: 50},
		EventIOID: 66,
		IO: []codec.IOElement{
			{ID: 66, Width: codec.Width2, Value: 4660, Event: true},
			{ID: 145, Width: codec.Width4, Value: 0x00050007, Packed: true, SubID: 7, SubValue: 5},
			{ID: 400, Width: codec.WidthVariable, Raw: []byte{0xCA, 0xFE}},
		},
	}}

	ms := BuildRecords("356307042441013", "10.0.0.5", records, stored)
	require.Len(t, ms, 3)

	first := ms[0]
	assert.Equal(t, "356307042441013", first.Name)
	assert.Equal(t, ts, first.Time)
	assert.Equal(t, map[string]string{
		TagIPAddress: "10.0.0.5",
		TagIOID:      "66",
		TagEvent:     "true",
		TagPriority:  "2",
		TagDataID:    "0",
	}, first.Tags)
	assert.Equal(t, map[string]any{
		FieldIOValue:    int64(4660),
		FieldDecodeData: int64(0),
		FieldLongitude:  25.1,
		FieldLatitude:   54.2,
		FieldAltitude:   int64(120),
		FieldAngle:      int64(90),
		FieldSatellites: int64(9),
		FieldSpeed:      int64(50),
		FieldStoredTime: "2026-10-19T08:00:00Z",
	}, first.Fields)

	packed := ms[1]
	assert.Equal(t, "false", packed.Tags[TagEvent])
	assert.Equal(t, "7", packed.Tags[TagDataID])
	assert.Equal(t, int64(5), packed.Fields[FieldDecodeData])

	assert.Equal(t, int64(0), ms[2].Fields[FieldIOValue])
	assert.Equal(t, "cafe", ms[2].Fields[FieldIORaw])
	assert.NotContains(t, first.Fields, FieldIORaw)
}

func TestBuildRecordsKeepsOneFieldTypePerMeasurement(t *testing.T) {
	records := []codec.AVLRecord{{
		Timestamp: time.UnixMilli(1700000000000).UTC(),
		IO: []codec.IOElement{
			{ID: 1, Width: codec.Width1, Value: 1},
			{ID: 0x0182, Width: codec.WidthVariable, Raw: []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99}},
			{ID: 0x0181, Width: codec.WidthVariable, Value: 255},
		},
	}}

	types := make(map[string]map[string]string)
	for _, m := range BuildRecords("123456789012345", "10.0.0.5", records, time.Now()) {
		if types[m.Name] == nil {
			types[m.Name] = make(map[string]string)
		}
		for k, v := range m.Fields {
			typ := fmt.Sprintf("%T", v)
			if prev, ok := types[m.Name][k]; ok {
				assert.Equal(t, prev, typ, "field %s of %s", k, m.Name)
			}
			types[m.Name][k] = typ
		}
	}
	assert.Equal(t, "int64", types["123456789012345"][FieldIOValue])
	assert.Equal(t, "string", types["123456789012345"][FieldIORaw])
}

func TestBuildStatus(t *testing.T) {
	at := time.Now()
	m := BuildStatus("356307042441013", "10.0.0.5", 40123, StatusOffline, at)
	assert.Equal(t, StatusMeasurement, m.Name)
	assert.Equal(t, map[string]string{"imei": "356307042441013"}, m.Tags)
	assert.Equal(t, "OFFLINE", m.Fields["status"])
	assert.Equal(t, "10.0.0.5", m.Fields[TagIPAddress])
	assert.Equal(t, int64(40123), m.Fields["port"])
	assert.Equal(t, at, m.Time)
}

type recordingSink struct {
	got [][]Measurement
	err error
}

func (s *recordingSink) Write(_ context.Context, ms []Measurement) error {
	s.got = append(s.got, ms)
	return s.err
}

func TestFanout(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("boom")}
	f := NewFanout(nil)
	f.Add("ok", ok)
	f.Add("bad", bad)
	assert.Equal(t, 2, f.Len())

	batch := []Measurement{BuildStatus("1", "ip", 1, StatusOnline, time.Now())}
	err := f.Write(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)

	require.NoError(t, f.Write(context.Background(), nil))
	assert.Len(t, ok.got, 1)
}

func TestFanoutAuxiliarySinksAreBestEffort(t *testing.T) {
	primary := &recordingSink{}
	aux := &recordingSink{}
	down := &recordingSink{err: errors.New("link: not connected")}
	f := NewFanout(nil)
	f.Add("influx", primary)
	f.AddAuxiliary("proxy", down)
	f.AddAuxiliary("grpc", aux)

	batch := []Measurement{BuildStatus("1", "ip", 1, StatusOnline, time.Now())}
	require.NoError(t, f.Write(context.Background(), batch))
	assert.Len(t, primary.got, 1)
	assert.Len(t, down.got, 1)
	assert.Len(t, aux.got, 1)
}

func TestFanoutSkipsAuxiliaryWhenPrimaryFails(t *testing.T) {
	primary := &recordingSink{err: errors.New("influx down")}
	aux := &recordingSink{}
	f := NewFanout(nil)
	f.Add("influx", primary)
	f.AddAuxiliary("proxy", aux)

	batch := []Measurement{BuildStatus("1", "ip", 1, StatusOnline, time.Now())}
	assert.Error(t, f.Write(context.Background(), batch))
	assert.Empty(t, aux.got)
}
