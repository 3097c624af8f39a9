package inspect

import "time"

// Config tunes the resolution queue. Zero fields take DefaultConfig values.
type Config struct {
	Capacity       int
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	QueueExpiry    time.Duration
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:       100,
		RequestDelay:   1500 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		QueueExpiry:    30 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.QueueExpiry <= 0 {
		c.QueueExpiry = def.QueueExpiry
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	return c
}
