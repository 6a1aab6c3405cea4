package codec

import "github.com/sigurn/crc16"

// CRC-16/IBM (ARC): reflected polynomial 0xA001, init 0, no final xor.
var arcTable = crc16.MakeTable(crc16.CRC16_ARC)

// CRC16 computes the checksum Teltonika devices append to data frames.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, arcTable)
}
