package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/pkg/types"
	"github.com/dj-oyu/pb-receiver/pkg/wire"
)

const (
	maxPacketSize = 64 * 1024

	// A sequence number this far behind the last one is a restarted master, not a
	// reordered packet.
	restartWindow = 64

	eventBuffer = 64

	minWatchdogTick = time.Millisecond
)

// Options configures a Receiver.
type Options struct {
	// SilenceTimeout is how long the master may stay quiet before it is considered gone.
	SilenceTimeout time.Duration
}

// Stats is a snapshot of receiver counters.
type Stats struct {
	Packets  uint64 `json:"packets"`
	Rejected uint64 `json:"rejected"`
	Source   string `json:"source"`
	LastSeq  uint64 `json:"last_seq"`
}

// Receiver reads body packets from the tracking master and keeps the arena current.
type Receiver struct {
	conn    net.PacketConn
	arena   *Arena
	timeout time.Duration
	events  chan Event

	mu         sync.Mutex
	connected  bool
	source     string
	lastSeq    uint64
	lastPacket time.Time

	packets  atomic.Uint64
	rejected atomic.Uint64
}

// Listen opens a UDP socket on addr and returns a receiver reading from it.
func Listen(addr string, opts Options) (*Receiver, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen feed %s: %w", addr, err)
	}
	return NewReceiver(conn, opts), nil
}

// NewReceiver returns a receiver reading from conn. The receiver closes conn when Run
// returns.
func NewReceiver(conn net.PacketConn, opts Options) *Receiver {
	if opts.SilenceTimeout <= 0 {
		opts.SilenceTimeout = 2 * time.Second
	}
	return &Receiver{
		conn:    conn,
		arena:   NewArena(),
		timeout: opts.SilenceTimeout,
		events:  make(chan Event, eventBuffer),
	}
}

// Addr returns the local feed address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Arena returns the body store the receiver writes to.
func (r *Receiver) Arena() *Arena {
	return r.arena
}

// Subset returns the bodies currently visible.
func (r *Receiver) Subset() []*types.Body {
	return r.arena.Subset()
}

// Events returns the notification channel. It has a single consumer and is closed when
// Run returns. Updated events are dropped when the consumer lags; Connected and Closed
// are not. The Closed sent on shutdown evicts the oldest queued event if the buffer is full.
func (r *Receiver) Events() <-chan Event {
	return r.events
}

// Stats returns the receiver counters.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Packets:  r.packets.Load(),
		Rejected: r.rejected.Load(),
		Source:   r.source,
		LastSeq:  r.lastSeq,
	}
}

// Run reads packets until ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	defer close(r.events)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return r.conn.Close()
	})
	g.Go(func() error {
		return r.readLoop(ctx)
	})
	g.Go(func() error {
		r.watchdog(ctx)
		return nil
	})

	err := g.Wait()

	r.mu.Lock()
	wasConnected := r.disconnectLocked()
	source := r.source
	r.mu.Unlock()
	if wasConnected {
		r.emitLast(Event{Kind: Closed, Source: source, Time: time.Now()})
	}

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (r *Receiver) readLoop(ctx context.Context) error {
	logger.Info("Feed", "Listening for tracking master on %s", r.conn.LocalAddr())

	buf := make([]byte, maxPacketSize)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}

		pkt, err := wire.UnmarshalBodyPacket(buf[:n])
		if err != nil {
			r.rejected.Add(1)
			logger.Warn("Feed", "Dropping packet from %s: %v", addr, err)
			continue
		}
		r.accept(ctx, addr.String(), pkt)
	}
}

func (r *Receiver) accept(ctx context.Context, source string, pkt *wire.BodyPacket) {
	r.mu.Lock()
	if r.connected && source != r.source {
		r.mu.Unlock()
		r.rejected.Add(1)
		logger.Debug("Feed", "Ignoring packet from %s while connected to %s", source, r.source)
		return
	}
	if r.connected && pkt.Seq < r.lastSeq && r.lastSeq-pkt.Seq < restartWindow {
		r.mu.Unlock()
		r.rejected.Add(1)
		return
	}

	wasConnected := r.connected
	r.connected = true
	r.source = source
	r.lastSeq = pkt.Seq
	r.lastPacket = time.Now()
	r.mu.Unlock()

	kept := r.arena.Replace(pkt.Seq, pkt.Bodies)
	r.packets.Add(1)

	now := time.Now()
	if !wasConnected {
		logger.Info("Feed", "Tracking master connected: %s", source)
		r.emit(ctx, Event{Kind: Connected, Source: source, Seq: pkt.Seq, Bodies: kept, Time: now}, true)
	}
	r.emit(ctx, Event{Kind: Updated, Source: source, Seq: pkt.Seq, Bodies: kept, Time: now}, false)
}

func (r *Receiver) watchdog(ctx context.Context) {
	ticker := time.NewTicker(max(r.timeout/4, minWatchdogTick))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			silent := r.connected && time.Since(r.lastPacket) > r.timeout
			var source string
			if silent {
				source = r.source
				r.disconnectLocked()
			}
			r.mu.Unlock()

			if silent {
				logger.Warn("Feed", "Tracking master %s silent for %v, closing", source, r.timeout)
				r.emit(ctx, Event{Kind: Closed, Source: source, Time: time.Now()}, true)
			}
		}
	}
}

// disconnectLocked drops the connection state and the bodies. It reports whether the
// receiver was connected.
func (r *Receiver) disconnectLocked() bool {
	was := r.connected
	r.connected = false
	r.lastSeq = 0
	r.arena.Clear()
	return was
}

func (r *Receiver) emit(ctx context.Context, ev Event, block bool) {
	if !block {
		select {
		case r.events <- ev:
		default:
		}
		return
	}
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}

// emitLast queues the final event once every other sender has stopped. When the consumer
// lags it evicts the oldest queued event to make room.
func (r *Receiver) emitLast(ev Event) {
	for {
		select {
		case r.events <- ev:
			return
		default:
		}
		select {
		case <-r.events:
		default:
		}
	}
}
