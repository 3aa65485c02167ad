package client

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SynthSource is a MediaSource without hardware: it feeds fixed-interval
// dummy samples into its tracks. Good enough for the demo client and for
// exercising the engine on machines with no camera.
type SynthSource struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSynthSource() *SynthSource { return &SynthSource{} }

func (s *SynthSource) Acquire(ctx context.Context) (*GatedTrack, *GatedTrack, error) {
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "callwire-synth",
	)
	if err != nil {
		return nil, nil, err
	}
	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "callwire-synth",
	)
	if err != nil {
		return nil, nil, err
	}

	audio := NewGatedTrack(audioTrack)
	video := NewGatedTrack(videoTrack)

	// One source serves successive call attempts: a new Acquire
	// supersedes any feed still running from the previous one.
	feedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go feed(feedCtx, audio, 20*time.Millisecond)
	go feed(feedCtx, video, 33*time.Millisecond)

	return audio, video, nil
}

func (s *SynthSource) AcquireScreen(_ context.Context) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"screen", "callwire-synth",
	)
}

func (s *SynthSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func feed(ctx context.Context, track *GatedTrack, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	payload := make([]byte, 16)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = track.WriteSample(media.Sample{Data: payload, Duration: interval})
		}
	}
}
