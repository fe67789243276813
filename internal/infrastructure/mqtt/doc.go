// Package mqtt provides MQTT client connectivity for the Genius gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing and topic subscriptions
//   - Last Will and Testament (LWT) so consumers see the gateway go offline
//   - The gateway's topic layout, including Home Assistant discovery topics
//
// The gateway publishes alarm state and events and accepts action and
// blocker requests:
//
//	<base>/status              online/offline (retained, LWT)
//	<base>/events/<name>       named gateway events
//	<base>/health              periodic health report
//	<base>/actions             action requests  {lineId, action}
//	<base>/actions/result      action responses
//	<base>/blocker             blocker requests {seconds}
//	<prefix><sn>/config        Home Assistant discovery (retained)
//	<prefix><sn>/state         Home Assistant state {"state":"ON"|"OFF"}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.HomeAssistant.TopicPrefix)
//	err = client.Subscribe(topics.Actions(), 1, func(topic string, payload []byte) error {
//	    return handleAction(payload)
//	})
package mqtt
