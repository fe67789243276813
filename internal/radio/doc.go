// Package radio owns the gateway's transceiver at run time.
//
// The Supervisor holds the only reference to the driver and hands it out
// through a single-slot claim: the reception pipeline, the transmission
// sequencer and the supervisor's own recovery each take the claim before
// touching the chip and release it afterwards. The driver is never used by
// two goroutines at once.
//
// The supervisor also watches the GDO0 line. GDO0 rises on sync word
// detection and falls at the end of a packet; if it stays high for longer
// than the stuck threshold while RX monitoring is enabled, the chip missed
// the end of a frame, so the supervisor flushes the RX FIFO and re-enters
// RX. Transmissions disable monitoring for the whole burst.
package radio
