package client

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatedTrack_DropsSamplesWhileDisabled(t *testing.T) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "test",
	)
	require.NoError(t, err)

	g := NewGatedTrack(track)
	assert.True(t, g.Enabled())

	sample := media.Sample{Data: []byte{0x01}, Duration: 20 * time.Millisecond}

	// Unbound tracks accept writes silently, so both paths must be nil.
	assert.NoError(t, g.WriteSample(sample))

	g.SetEnabled(false)
	assert.False(t, g.Enabled())
	assert.NoError(t, g.WriteSample(sample))

	g.SetEnabled(true)
	assert.Same(t, track, g.Track())
}

func TestSynthSource_ReusableAcrossCalls(t *testing.T) {
	s := NewSynthSource()
	ctx := context.Background()
	base := runtime.NumGoroutine()

	// One source outlives many call attempts; every Close must stop the
	// feeds started by the matching Acquire.
	for i := 0; i < 3; i++ {
		_, _, err := s.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base
	}, 2*time.Second, 50*time.Millisecond, "feed goroutines must not outlive Close")

	// Close with nothing acquired is a no-op.
	require.NoError(t, s.Close())
}

func TestMediaHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "permission", err: ErrMediaPermission, want: "Allow camera and microphone access in your browser or OS settings."},
		{name: "busy", err: ErrMediaBusy, want: "Close other applications using the camera and try again."},
		{name: "no_device", err: ErrNoMediaDevice, want: "Connect a camera and microphone, then retry."},
		{name: "wrapped", err: errors.Join(errors.New("getUserMedia"), ErrMediaBusy), want: "Close other applications using the camera and try again."},
		{name: "unknown", err: errors.New("boom"), want: "Could not start your camera or microphone."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaHint(tt.err))
		})
	}
}
