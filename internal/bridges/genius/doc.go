// Package genius implements the Hekatron Genius radio bridge.
//
// Genius smoke detectors talk to each other over 868 MHz through FM Basis X
// radio modules. The gateway listens to that traffic with a CC1101
// transceiver, keeps track of detectors and alarm lines, and can itself
// transmit line tests and fire alarms on a line.
//
// # Architecture
//
//	            GDO0 edge          ┌──────────┐  Dispatch   ┌─────────────┐
//	  CC1101 ─────────────────────►│ Receiver │────────────►│ Dispatcher  │──► device / alarmline
//	    ▲                          └──────────┘             └─────────────┘     registries
//	    │ burst                         │ packet log                                 │ OnChange
//	┌───┴───────┐  Submit  ┌────────┐   ▼                                            ▼
//	│ Sequencer │◄─────────│ Bridge │◄── MQTT actions / blocker      events.Bus ──► MQTT, InfluxDB
//	└───────────┘          └────────┘
//
// # Packets
//
// A packet's type follows from its length alone (see the Len constants).
// Multi-byte ids are big-endian except the alarm source detector, which is
// little-endian. Every frame is repeated many times by the detectors with
// only the rolling counter changing; DuplicateFilter drops these repeats.
//
// # Transmission
//
// Each action is a template frame sent a fixed number of times at a fixed
// period (370 × 8.395 ms for line tests, 315 × 9.855 ms for fire alarms).
// The period timer is armed before every send. A burst that runs past ten
// seconds is aborted and reported as timed out. Only one burst runs at a
// time; further requests are answered with "busy".
//
// # MQTT
//
//	{base}/actions          ActionRequest in
//	{base}/actions/result   ActionResult out
//	{base}/blocker          BlockRequest in
//	{base}/events/{name}    gateway events out
//	{base}/health           HealthMessage out (retained)
//	{prefix}{sn}/config     Home Assistant discovery (retained)
//	{prefix}{sn}/state      {"state":"ON"|"OFF"} (retained)
package genius
