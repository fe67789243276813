// Package events is the gateway's in-process event bus.
//
// Components publish named events with a small structured payload; the MQTT
// publisher, the InfluxDB logger and tests subscribe by name. The bus is built
// on github.com/btittelbach/pubsub, so a slow subscriber applies back-pressure
// to publishers. Every subscriber must therefore drain its channel, which
// Forward does until the bus is closed.
package events
