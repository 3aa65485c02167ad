package client

import (
	"context"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PacketSink receives remote RTP packets once the stream is live.
type PacketSink func(pkt *rtp.Packet, track *webrtc.TrackRemote)

// RemoteStream is the single combined view of the far side's media.
// Tracks can arrive in a transiently muted state; the stream counts as
// live once the first packet of any track has been read.
type RemoteStream struct {
	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
	sink   PacketSink

	live     chan struct{}
	liveOnce sync.Once
}

func newRemoteStream() *RemoteStream {
	return &RemoteStream{live: make(chan struct{})}
}

func (r *RemoteStream) addTrack(track *webrtc.TrackRemote) {
	r.mu.Lock()
	r.tracks = append(r.tracks, track)
	r.mu.Unlock()
}

func (r *RemoteStream) Tracks() []*webrtc.TrackRemote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*webrtc.TrackRemote(nil), r.tracks...)
}

// SetSink installs the playback consumer. Packets read before the sink
// is set are dropped.
func (r *RemoteStream) SetSink(fn PacketSink) {
	r.mu.Lock()
	r.sink = fn
	r.mu.Unlock()
}

// WaitLive blocks until the first packet, the timeout or ctx. Returns
// whether the stream went live inside the bound.
func (r *RemoteStream) WaitLive(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.live:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// pump reads the track until it errors out (closed connection or ended
// track) and forwards packets to the sink.
func (r *RemoteStream) pump(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "client.remote").Str("track", track.ID()).Msg("remote track pump stopped")
			return
		}
		r.liveOnce.Do(func() { close(r.live) })
		r.mu.Lock()
		sink := r.sink
		r.mu.Unlock()
		if sink != nil {
			sink(pkt, track)
		}
	}
}
