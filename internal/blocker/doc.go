// Package blocker implements the alarm blocker: a countdown that, while
// running, makes the gateway refuse fire alarm actions.
package blocker
