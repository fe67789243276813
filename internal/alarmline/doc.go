// Package alarmline provides the alarm line registry of the Genius gateway.
//
// An alarm line is the 32-bit group id carried by every Genius packet.
// Lines enter the registry from received packets (commissioning, alarm and
// line test packets, each behind a feature flag), from administration, or
// as the built-in broadcast line 0xFFFFFFFF which exists only while the
// broadcast feature is enabled.
//
// Adding an existing id is not an error: Add reports false and leaves the
// registry unchanged. The sequencer in the genius bridge transmits line
// tests and fire alarms addressed to these ids.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Handlers and persistence run after
// the registry lock is released.
package alarmline
