package playback

import "time"

// VirtualClock is a Clock whose time only moves when Advance is called. The
// session loop advances it from a ticker; tests advance it by hand.
//
// Events are only ever emitted from Advance, so a listener may freely call
// Pause, Seek or Mount from inside a callback.
type VirtualClock struct {
	durations DurationSource
	listener  Listener

	source   string
	duration float64
	loadErr  error
	reported bool

	position float64
	playing  bool
	ended    bool
	// primed makes the next Advance report the current position without
	// moving, so a freshly started, seeked or switched source is observed
	// before time moves on.
	primed bool
}

// NewVirtualClock creates an empty, paused clock.
func NewVirtualClock(durations DurationSource) *VirtualClock {
	return &VirtualClock{durations: durations}
}

// SetListener implements Clock.
func (c *VirtualClock) SetListener(l Listener) {
	c.listener = l
}

// Mount implements Clock.
func (c *VirtualClock) Mount(source string) {
	c.source = source
	c.position = 0
	c.playing = false
	c.ended = false
	c.primed = true
	c.reported = false
	c.loadErr = nil
	c.duration = 0

	d, err := c.durations.Duration(source)
	if err != nil {
		c.loadErr = err
		return
	}
	c.duration = d
}

// Source implements Clock.
func (c *VirtualClock) Source() string {
	return c.source
}

// Duration returns the length of the mounted source, 0 when unknown.
func (c *VirtualClock) Duration() float64 {
	return c.duration
}

// Play implements Clock.
func (c *VirtualClock) Play() {
	if c.ended || c.playing {
		return
	}
	c.playing = true
	c.primed = true
}

// Pause implements Clock.
func (c *VirtualClock) Pause() {
	c.playing = false
}

// Seek implements Clock. Positions are clamped to the source bounds.
func (c *VirtualClock) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if c.duration > 0 && seconds > c.duration {
		seconds = c.duration
	}
	c.position = seconds
	c.ended = false
	c.primed = true
}

// CurrentTime implements Clock.
func (c *VirtualClock) CurrentTime() float64 {
	return c.position
}

// Playing implements Clock.
func (c *VirtualClock) Playing() bool {
	return c.playing
}

// Advance moves playback forward by d and emits at most one event.
func (c *VirtualClock) Advance(d time.Duration) {
	if c.source == "" {
		return
	}
	if c.loadErr != nil {
		if !c.reported {
			c.reported = true
			c.playing = false
			if c.listener != nil {
				c.listener.OnLoadFailed(c.loadErr)
			}
		}
		return
	}
	if !c.playing || c.ended {
		return
	}

	if c.primed {
		c.primed = false
		c.emitTick()
		return
	}

	c.position += d.Seconds()
	if c.position >= c.duration {
		c.position = c.duration
		c.playing = false
		c.ended = true
		if c.listener != nil {
			c.listener.OnEnded()
		}
		return
	}
	c.emitTick()
}

func (c *VirtualClock) emitTick() {
	if c.listener != nil {
		c.listener.OnTick(c.position)
	}
}
