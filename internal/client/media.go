package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Media acquisition failures a UI can turn into a remediation hint.
var (
	ErrMediaPermission = errors.New("camera or microphone access denied")
	ErrMediaBusy       = errors.New("capture device in use by another application")
	ErrNoMediaDevice   = errors.New("no camera or microphone found")
)

// MediaHint maps an acquisition error to the message shown to the user.
func MediaHint(err error) string {
	switch {
	case errors.Is(err, ErrMediaPermission):
		return "Allow camera and microphone access in your browser or OS settings."
	case errors.Is(err, ErrMediaBusy):
		return "Close other applications using the camera and try again."
	case errors.Is(err, ErrNoMediaDevice):
		return "Connect a camera and microphone, then retry."
	default:
		return "Could not start your camera or microphone."
	}
}

// MediaSource abstracts device capture. Implementations own the capture
// loop and feed samples into the returned tracks.
type MediaSource interface {
	// Acquire opens the devices and returns exactly one audio and one
	// video outbound track, already being fed.
	Acquire(ctx context.Context) (audio, video *GatedTrack, err error)
	// AcquireScreen returns a display-capture track for screen sharing.
	AcquireScreen(ctx context.Context) (*webrtc.TrackLocalStaticSample, error)
	// Close stops capture and releases the devices.
	Close() error
}

// GatedTrack wraps an outbound sample track with an enabled flag. Mute
// drops samples at the writer, the far side sees track silence without
// any renegotiation.
type GatedTrack struct {
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

func NewGatedTrack(track *webrtc.TrackLocalStaticSample) *GatedTrack {
	g := &GatedTrack{track: track}
	g.enabled.Store(true)
	return g
}

// WriteSample forwards the sample unless the gate is closed.
func (g *GatedTrack) WriteSample(s media.Sample) error {
	if !g.enabled.Load() {
		return nil
	}
	return g.track.WriteSample(s)
}

func (g *GatedTrack) SetEnabled(v bool) { g.enabled.Store(v) }
func (g *GatedTrack) Enabled() bool     { return g.enabled.Load() }

// Track exposes the underlying track for AddTrack/ReplaceTrack.
func (g *GatedTrack) Track() *webrtc.TrackLocalStaticSample { return g.track }
