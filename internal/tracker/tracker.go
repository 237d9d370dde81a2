// Package tracker owns the active GPS tracking session: position
// ingestion, periodic street matching, battery optimization and the
// persistence handoff at session end. One Tracker allows one active
// session at a time; it is an owned object wired in the composition
// root, not a package global.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
	"github.com/SkaSmat/city-explorer/internal/matcher"
	"github.com/SkaSmat/city-explorer/internal/overpass"

	"github.com/google/uuid"
)

const (
	candidateRadiusKm  = 1.0
	simplifyToleranceM = 20

	defaultTickInterval   = 10 * time.Second
	optimizedTickInterval = 15 * time.Second
	batteryOptimizeAfter  = 30 * time.Minute

	normalSampling    = 5 * time.Second
	optimizedSampling = 10 * time.Second
)

// StreetSource loads candidate streets around a position. Satisfied by
// *overpass.Service.
type StreetSource interface {
	StreetsAround(ctx context.Context, lat, lng, radiusKm float64) ([]overpass.Street, error)
}

// Recorder persists a finalized track and reconciles explored street
// ids against the per-user ledger, returning the count of streets newly
// discovered by this track.
type Recorder interface {
	SaveTrack(ctx context.Context, rec TrackRecord) (int, error)
}

// Broadcaster pushes live session snapshots out to stream clients.
type Broadcaster interface {
	Broadcast(userID string, payload []byte)
}

type session struct {
	id         string
	userID     string
	city       string
	startTime  time.Time
	points     []geo.Point
	candidates []overpass.Street
	explored   map[int64]struct{}

	active           bool
	batteryOptimized bool

	cancelSub  func()
	tickCancel context.CancelFunc
	done       sync.WaitGroup
}

type Tracker struct {
	positions Source
	streets   StreetSource
	recorder  Recorder
	hub       Broadcaster // optional
	match     matcher.Matcher

	mu        sync.Mutex
	sess      *session
	lastFatal error

	now                   func() time.Time
	tickInterval          time.Duration
	optimizedTickInterval time.Duration
	batteryAfter          time.Duration
}

func New(positions Source, streets StreetSource, recorder Recorder, hub Broadcaster) *Tracker {
	return &Tracker{
		positions:             positions,
		streets:               streets,
		recorder:              recorder,
		hub:                   hub,
		match:                 matcher.New(),
		now:                   time.Now,
		tickInterval:          defaultTickInterval,
		optimizedTickInterval: optimizedTickInterval,
		batteryAfter:          batteryOptimizeAfter,
	}
}

// Active reports whether a session is currently tracking.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil && t.sess.active
}

// Start begins a new tracking session: one synchronous fix, candidate
// streets for 1 km around it, then continuous ingestion plus the match
// tick. A failed street fetch aborts the start and leaves state idle.
func (t *Tracker) Start(ctx context.Context, userID, city string) error {
	t.mu.Lock()
	if t.sess != nil && t.sess.active {
		t.mu.Unlock()
		return ErrAlreadyTracking
	}
	if t.sess != nil {
		// Stale session from an abnormal termination.
		log.Printf("tracker: cleaning up inactive session %s", t.sess.id)
		t.teardownLocked(t.sess)
		t.sess = nil
	}
	t.lastFatal = nil
	t.mu.Unlock()

	fix, err := t.positions.Current(ctx)
	if err != nil {
		if errors.Is(err, ErrPositioningUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPositioningUnavailable, err)
	}

	candidates, err := t.streets.StreetsAround(ctx, fix.Lat, fix.Lng, candidateRadiusKm)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreetDataUnavailable, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil && t.sess.active {
		return ErrAlreadyTracking
	}

	sess := &session{
		id:         uuid.NewString(),
		userID:     userID,
		city:       city,
		startTime:  t.now(),
		points:     []geo.Point{fix},
		candidates: candidates,
		explored:   map[int64]struct{}{},
		active:     true,
	}

	ch, cancel := t.positions.Subscribe(SubscribeOptions{MinInterval: normalSampling})
	sess.cancelSub = cancel

	tickCtx, tickCancel := context.WithCancel(context.Background())
	sess.tickCancel = tickCancel

	t.sess = sess
	sess.done.Add(2)
	go t.consume(sess, ch)
	go t.runTicker(tickCtx, sess, t.tickInterval)

	log.Printf("tracker: session %s started in %s with %d candidate streets", sess.id, city, len(candidates))
	return nil
}

// Stop finalizes the active session: the tick and subscription are
// cancelled before the final match pass so no concurrent tick mutates
// the explored set during finalization. Cleanup to idle happens whether
// or not persistence succeeds.
func (t *Tracker) Stop(ctx context.Context) (Result, error) {
	t.mu.Lock()
	sess := t.sess
	if sess == nil || !sess.active {
		t.mu.Unlock()
		return Result{}, ErrNoActiveSession
	}
	sess.active = false
	t.mu.Unlock()

	sess.tickCancel()
	sess.cancelSub()
	sess.done.Wait()

	t.mu.Lock()
	t.matchInto(sess)

	distance := geo.PathLength(sess.points)
	duration := t.now().Sub(sess.startTime)
	simplified := geo.Simplify(sess.points, simplifyToleranceM)
	explored := sortedIDs(sess.explored)

	rec := TrackRecord{
		UserID:            sess.userID,
		City:              sess.city,
		Points:            simplified,
		DistanceMeters:    distance,
		DurationSeconds:   int64(duration.Seconds()),
		ExploredStreetIDs: explored,
		StartedAt:         sess.startTime,
		EndedAt:           t.now(),
	}

	// Cleanup is unconditional: a persistence failure must not leave the
	// tracker unable to start a new session.
	t.sess = nil
	t.mu.Unlock()

	newStreets, err := t.recorder.SaveTrack(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("persist track: %w", err)
	}

	log.Printf("tracker: session %s stopped, %.0f m, %d new streets", sess.id, distance, newStreets)
	return Result{
		DistanceMeters:  distance,
		NewStreets:      newStreets,
		DurationSeconds: rec.DurationSeconds,
	}, nil
}

// ForceReset discards the session without matching or persistence. It
// is a recovery tool for sessions left behind by an abnormal prior
// termination, not part of the normal stop flow.
func (t *Tracker) ForceReset() {
	t.mu.Lock()
	sess := t.sess
	t.sess = nil
	t.lastFatal = nil
	if sess != nil {
		sess.active = false
	}
	t.mu.Unlock()

	if sess == nil {
		return
	}
	if len(sess.points) > 0 {
		log.Printf("tracker: force reset discarding %d buffered points", len(sess.points))
	}
	sess.tickCancel()
	sess.cancelSub()
}

// State returns a snapshot of the current session for dashboards.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Tracker) stateLocked() State {
	if t.sess == nil {
		state := State{}
		if t.lastFatal != nil {
			state.LastError = t.lastFatal.Error()
		}
		return state
	}

	sess := t.sess
	state := State{
		Active:            sess.active,
		SessionID:         sess.id,
		City:              sess.city,
		DistanceMeters:    geo.PathLength(sess.points),
		DurationSeconds:   int64(t.now().Sub(sess.startTime).Seconds()),
		PointsRecorded:    len(sess.points),
		StreetsExplored:   len(sess.explored),
		BatteryOptimized:  sess.batteryOptimized,
		ExploredStreetIDs: sortedIDs(sess.explored),
	}
	if n := len(sess.points); n > 0 {
		last := sess.points[n-1]
		state.LastPosition = &last
	}
	return state
}

// consume drains one position subscription until it closes.
func (t *Tracker) consume(sess *session, ch <-chan Update) {
	defer sess.done.Done()

	for update := range ch {
		if update.Err != nil {
			if update.Err.Kind == KindPermissionDenied {
				t.terminate(sess, ErrPermissionDenied)
			} else {
				// Timeouts and transient unavailability are advisory only.
				log.Printf("tracker: position warning: %v", update.Err)
			}
			continue
		}

		t.mu.Lock()
		if t.sess == sess && sess.active {
			sess.points = append(sess.points, update.Point)
		}
		t.mu.Unlock()
	}
}

// terminate is the cleanup path for ingestion-fatal errors: equivalent
// to stop-without-persistence.
func (t *Tracker) terminate(sess *session, cause error) {
	t.mu.Lock()
	if t.sess != sess || !sess.active {
		t.mu.Unlock()
		return
	}
	sess.active = false
	t.sess = nil
	t.lastFatal = cause
	t.mu.Unlock()

	sess.tickCancel()
	sess.cancelSub()
	log.Printf("tracker: session %s terminated: %v", sess.id, cause)
}

func (t *Tracker) runTicker(ctx context.Context, sess *session, interval time.Duration) {
	defer sess.done.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if next := t.tick(sess); next > 0 {
				ticker.Reset(next)
			}
		}
	}
}

// tick re-runs the matcher over the whole accumulated buffer and checks
// whether battery optimization should engage. Returns a non-zero
// duration when the tick period must change. Safe to call repeatedly.
func (t *Tracker) tick(sess *session) time.Duration {
	t.mu.Lock()
	if t.sess != sess || !sess.active {
		t.mu.Unlock()
		return 0
	}

	t.matchInto(sess)

	var reset time.Duration
	if !sess.batteryOptimized && t.now().Sub(sess.startTime) >= t.batteryAfter {
		// Engages at most once per session: resubscribe with looser
		// sampling and slow the match tick down.
		sess.batteryOptimized = true

		oldCancel := sess.cancelSub
		ch, cancel := t.positions.Subscribe(SubscribeOptions{MinInterval: optimizedSampling})
		sess.cancelSub = cancel
		sess.done.Add(1)
		go t.consume(sess, ch)
		oldCancel()

		reset = t.optimizedTickInterval
		log.Printf("tracker: battery optimization engaged for session %s", sess.id)
	}

	var payload []byte
	userID := sess.userID
	if t.hub != nil {
		payload, _ = json.Marshal(t.stateLocked())
	}
	t.mu.Unlock()

	if t.hub != nil && payload != nil {
		t.hub.Broadcast(userID, payload)
	}
	return reset
}

// matchInto unions the current match result into the explored set.
// Caller holds t.mu.
func (t *Tracker) matchInto(sess *session) {
	for id := range t.match.FindIntersectingStreets(sess.points, sess.candidates) {
		sess.explored[id] = struct{}{}
	}
}

// teardownLocked cancels a session's timers and subscription. Caller
// holds t.mu.
func (t *Tracker) teardownLocked(sess *session) {
	sess.active = false
	if sess.tickCancel != nil {
		sess.tickCancel()
	}
	if sess.cancelSub != nil {
		sess.cancelSub()
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
