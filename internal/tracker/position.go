package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
)

// ErrorKind classifies errors delivered on a position stream.
type ErrorKind int

const (
	KindPermissionDenied ErrorKind = iota + 1
	KindTimeout
	KindPositionUnavailable
)

// PositionError is a non-fix event on the stream. Only
// KindPermissionDenied is fatal to a session.
type PositionError struct {
	Kind    ErrorKind
	Message string
}

func (e *PositionError) Error() string { return e.Message }

// Update is one event from a position stream: either a fix or an error.
type Update struct {
	Point geo.Point
	Err   *PositionError
}

// SubscribeOptions tune the sampling of a position stream. Battery
// optimization resubscribes with a looser MinInterval.
type SubscribeOptions struct {
	MinInterval time.Duration
}

// Source delivers GPS fixes. Current blocks for one synchronous fix;
// Subscribe returns a long-lived event stream and a cancel func that
// closes it deterministically.
type Source interface {
	Current(ctx context.Context) (geo.Point, error)
	Subscribe(opts SubscribeOptions) (<-chan Update, func())
}

// PushSource is the production Source: the client device POSTs fixes to
// the API and they are fanned out to the active subscription. It adapts
// a push-style HTTP surface into the stream the tracker consumes.
type PushSource struct {
	mu      sync.Mutex
	subs    map[int]*pushSub
	nextID  int
	waiters []chan geo.Point

	// currentTimeout bounds how long Current waits for the next fix.
	currentTimeout time.Duration
}

type pushSub struct {
	ch       chan Update
	minGap   time.Duration
	lastSent time.Time
}

func NewPushSource() *PushSource {
	return &PushSource{
		subs:           map[int]*pushSub{},
		currentTimeout: 10 * time.Second,
	}
}

// Push delivers a fix to the waiting Current call, if any, and to every
// subscription. Fixes arriving faster than a subscription's MinInterval
// are dropped for that subscription.
func (p *PushSource) Push(point geo.Point) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil

	now := time.Now()
	for _, sub := range p.subs {
		if sub.minGap > 0 && now.Sub(sub.lastSent) < sub.minGap {
			continue
		}
		sub.lastSent = now
		select {
		case sub.ch <- Update{Point: point}:
		default:
		}
	}
	p.mu.Unlock()

	for _, w := range waiters {
		w <- point
	}
}

// PushError delivers a classified error event to every subscription.
func (p *PushSource) PushError(kind ErrorKind, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subs {
		select {
		case sub.ch <- Update{Err: &PositionError{Kind: kind, Message: message}}:
		default:
		}
	}
}

// Current waits for the next pushed fix.
func (p *PushSource) Current(ctx context.Context) (geo.Point, error) {
	waiter := make(chan geo.Point, 1)
	p.mu.Lock()
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	timer := time.NewTimer(p.currentTimeout)
	defer timer.Stop()

	select {
	case point := <-waiter:
		return point, nil
	case <-timer.C:
		p.dropWaiter(waiter)
		return geo.Point{}, ErrPositioningUnavailable
	case <-ctx.Done():
		p.dropWaiter(waiter)
		return geo.Point{}, ctx.Err()
	}
}

func (p *PushSource) dropWaiter(waiter chan geo.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == waiter {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *PushSource) Subscribe(opts SubscribeOptions) (<-chan Update, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++

	sub := &pushSub{
		ch:     make(chan Update, 64),
		minGap: opts.MinInterval,
	}
	p.subs[id] = sub

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if s, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}
