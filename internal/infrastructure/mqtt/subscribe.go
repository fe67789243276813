package mqtt

import "fmt"

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Subscribe routes messages matching topic to handler. The subscription is
// remembered and replayed after every reconnect; a failed subscribe is not.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %q", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	token := c.paho.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, topic, err)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// resubscribe replays the remembered subscriptions on a fresh session.
// Failures are logged; paho reconnects again if the session breaks.
func (c *Client) resubscribe() {
	c.mu.RLock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.RUnlock()

	for topic, sub := range subs {
		token := c.paho.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		if !token.WaitTimeout(opTimeout) {
			c.warn("resubscribing timed out", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			c.warn("resubscribing failed", "topic", topic, "error", err)
		}
	}
}
