package job

import "sync"

// Channel is an unbounded FIFO mailbox of status messages for one job.
// Drained messages are gone, there is no replay. Thread safe.
type Channel struct {
	mu    sync.Mutex
	queue []Message
	done  bool // terminal message appended
	seen  bool // terminal message drained
}

// Append adds message to the tail of the queue
func (c *Channel) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, msg)
	if msg.Final {
		c.done = true
	}
}

// Drain removes and returns all queued messages in the order they were appended.
// Returns empty, non-nil slice if nothing is pending.
func (c *Channel) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return []Message{}
	}
	res := c.queue
	c.queue = nil
	if c.done {
		c.seen = true
	}
	return res
}

// Terminated reports if the job appended its terminal message
func (c *Channel) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Delivered reports if the terminal message was already drained by some poll
func (c *Channel) Delivered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// Len returns number of pending messages
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
