// Package playback provides the transport abstraction the orchestrator drives:
// a single mounted source with play/pause/seek and a typed tick/ended contract.
package playback

import (
	"errors"
	"fmt"
)

// ErrUnknownDuration is reported when a source's length cannot be determined,
// which the clock treats as a load failure.
var ErrUnknownDuration = errors.New("media duration unknown")

// Listener receives clock events. Calls are made synchronously from the
// goroutine driving the clock and never overlap.
type Listener interface {
	// OnTick reports the local position of the mounted source while playing.
	OnTick(local float64)
	// OnEnded fires once when the mounted source plays to its end unattended.
	OnEnded()
	// OnLoadFailed fires once when the mounted source cannot be played.
	OnLoadFailed(err error)
}

// Clock is the transport of one mounted source.
type Clock interface {
	// Mount replaces the source, resetting local time to 0 and pausing.
	Mount(source string)
	Source() string
	Play()
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	Playing() bool
	SetListener(l Listener)
}

// DurationSource resolves the length in seconds of a media source.
type DurationSource interface {
	Duration(uri string) (float64, error)
}

// StaticDurations is a fixed uri to duration table.
type StaticDurations map[string]float64

// Duration implements DurationSource.
func (s StaticDurations) Duration(uri string) (float64, error) {
	d, ok := s[uri]
	if !ok || d <= 0 {
		return 0, fmt.Errorf("%s: %w", uri, ErrUnknownDuration)
	}
	return d, nil
}

// ChainDurations tries each source in order and returns the first success.
type ChainDurations []DurationSource

// Duration implements DurationSource.
func (c ChainDurations) Duration(uri string) (float64, error) {
	var errs []error
	for _, src := range c {
		d, err := src.Duration(uri)
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, fmt.Errorf("%s: %w", uri, ErrUnknownDuration)
	}
	return 0, errors.Join(errs...)
}
