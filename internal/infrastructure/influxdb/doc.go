// Package influxdb provides InfluxDB connectivity for the Genius gateway.
//
// It wraps the official influxdb-client-go v2 library and records:
//   - The passive packet log: every received RF packet, duplicates included
//   - Alarm state transitions per smoke detector
//   - Completed transmissions (line tests, fire alarms)
//
// Writes are non-blocking and batched by the client library. A closed
// client turns every write into a no-op so callers need no
// nil checks beyond the client itself.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePacket(influxdb.PacketRecord{Data: raw, RSSI: -71, Duplicate: false, Kind: "alarm-start"})
package influxdb
