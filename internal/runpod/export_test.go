package runpod

import (
	"context"
	"time"
)

// SetClock replaces the time source and the sleep used between polls.
func (c *Client) SetClock(now func() time.Time, sleep func(context.Context, time.Duration) error) {
	c.now = now
	c.sleep = sleep
}
