// Package notify shares the single active incoming-call record between
// every window of one profile. Dual write: an in-process copy for local
// observers plus a JSON file in a shared directory that other processes
// watch via fsnotify. Accept/reject markers tell the other windows to
// dismiss their copy of the same ring.
package notify

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/domain"
)

const (
	callFile     = "incoming-call.json"
	acceptedFile = "call-accepted.json"
	rejectedFile = "call-rejected.json"

	// Rings older than this are stale and discarded on read.
	MaxAge = 5 * time.Minute

	// How long accept/reject markers stay on disk.
	markerTTL = time.Second
)

// Record is one incoming-call notification.
type Record struct {
	From      domain.UserID `json:"from"`
	Name      string        `json:"name"`
	RoomID    domain.RoomID `json:"roomId"`
	Image     string        `json:"image,omitempty"`
	CallID    domain.CallID `json:"callId"`
	Timestamp time.Time     `json:"timestamp"`
}

func (r *Record) stale(now time.Time) bool {
	return now.Sub(r.Timestamp) > MaxAge
}

type marker struct {
	RoomID domain.RoomID `json:"roomId"`
}

// Listener observes the shared record. nil means the ring was cleared or
// dismissed (accepted/rejected elsewhere).
type Listener func(*Record)

// Channel is one window's handle on the shared notification state.
type Channel struct {
	dir     string
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu        sync.Mutex
	local     *Record
	listeners []Listener
	delivered time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New opens a channel on the shared directory, creating it when needed.
// Every window of the profile must use the same dir.
func New(dir string) (*Channel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	ch := &Channel{
		dir:     dir,
		watcher: watcher,
		log:     log.With().Str("module", "client.notify").Logger(),
		done:    make(chan struct{}),
	}
	go ch.watch()
	return ch, nil
}

// Subscribe adds a same-process listener.
func (c *Channel) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Store writes the record with a fresh timestamp to both stores and
// notifies same-process listeners synchronously.
func (c *Channel) Store(rec Record) error {
	rec.Timestamp = time.Now()

	raw, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path(callFile), raw, 0o644); err != nil {
		return err
	}

	c.mu.Lock()
	c.local = &rec
	c.delivered = rec.Timestamp
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(&rec)
	}
	return nil
}

// Read returns the active record, preferring the in-process copy and
// falling back to the shared file. Stale records are discarded, not
// returned.
func (c *Channel) Read() *Record {
	now := time.Now()

	c.mu.Lock()
	local := c.local
	c.mu.Unlock()
	if local != nil {
		if local.stale(now) {
			c.Clear()
			return nil
		}
		cp := *local
		return &cp
	}

	rec, err := c.readFile(callFile)
	if err != nil || rec == nil {
		return nil
	}
	if rec.stale(now) {
		c.Clear()
		return nil
	}
	return rec
}

// Clear removes the record from both stores. Any window may clear.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.local = nil
	c.mu.Unlock()
	if err := os.Remove(c.path(callFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn().Err(err).Msg("clear failed")
	}
}

// MarkAccepted tells the other windows this ring was answered here, so
// they dismiss instead of double-answering. The marker self-clears.
func (c *Channel) MarkAccepted(room domain.RoomID) { c.mark(acceptedFile, room) }

// MarkRejected is the decline twin of MarkAccepted.
func (c *Channel) MarkRejected(room domain.RoomID) { c.mark(rejectedFile, room) }

func (c *Channel) mark(name string, room domain.RoomID) {
	raw, err := json.Marshal(marker{RoomID: room})
	if err != nil {
		return
	}
	path := c.path(name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		c.log.Warn().Err(err).Msg("marker write failed")
		return
	}
	time.AfterFunc(markerTTL, func() {
		_ = os.Remove(path)
	})
}

// Close stops the watcher. The shared file is left for other windows.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.watcher.Close()
	})
}

func (c *Channel) path(name string) string { return filepath.Join(c.dir, name) }

func (c *Channel) readFile(name string) (*Record, error) {
	raw, err := os.ReadFile(c.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// watch turns shared-file changes made by other windows into listener
// calls in this one.
func (c *Channel) watch() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (c *Channel) handleEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	switch name {
	case callFile:
		if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
			c.dismiss()
			return
		}
		if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
			return
		}
		rec, err := c.readFile(callFile)
		if err != nil || rec == nil {
			return
		}
		c.mu.Lock()
		// Skip the echo of our own Store.
		if rec.Timestamp.Equal(c.delivered) {
			c.mu.Unlock()
			return
		}
		c.local = rec
		c.delivered = rec.Timestamp
		listeners := append([]Listener(nil), c.listeners...)
		c.mu.Unlock()
		cp := *rec
		for _, fn := range listeners {
			fn(&cp)
		}
	case acceptedFile, rejectedFile:
		if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
			return
		}
		// Another window answered or declined this ring; drop our copy.
		c.dismiss()
	}
}

func (c *Channel) dismiss() {
	c.mu.Lock()
	hadLocal := c.local != nil
	c.local = nil
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	if !hadLocal {
		return
	}
	for _, fn := range listeners {
		fn(nil)
	}
}
