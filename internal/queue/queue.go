// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

// Package queue serializes mutating operations per rundown playlist.
//
// Every ingest and playout mutation for a playlist runs through one lane,
// so at most one operation is in flight per playlist id at any time.
// Queued operations are ordered by priority, then arrival. Operations for
// different playlists run fully concurrently. A running operation is never
// cancelled; callers that give up waiting get their context error back,
// but the operation itself still executes to completion.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onairhq/showrunner/internal/metrics"
)

// Priority orders queued operations within one playlist lane.
// Lower values run first.
type Priority int

const (
	// PriorityIngest is automated ingest from the newsroom system.
	PriorityIngest Priority = 10
	// PriorityUserIngest is an ingest-shaped change triggered by a user.
	PriorityUserIngest Priority = 20
	// PriorityUserPlayout is a direct user playout action (take, set next).
	PriorityUserPlayout Priority = 30
	// PriorityCallback is a device callback (playback reports, command replies).
	PriorityCallback Priority = 40
)

func (p Priority) String() string {
	switch p {
	case PriorityIngest:
		return "ingest"
	case PriorityUserIngest:
		return "user-ingest"
	case PriorityUserPlayout:
		return "user-playout"
	case PriorityCallback:
		return "callback"
	default:
		return fmt.Sprintf("priority-%d", int(p))
	}
}

// ErrClosed is returned by RunExclusive after Close has been called.
var ErrClosed = errors.New("queue: closed")

const defaultIdleGrace = 30 * time.Second

type job struct {
	priority Priority
	seq      uint64
	label    string
	ctx      context.Context
	fn       func(context.Context) error
	done     chan error
	enqueued time.Time
}

// jobHeap is a min-heap ordered by (priority, arrival).
type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

type lane struct {
	id   string
	mu   sync.Mutex
	jobs jobHeap
	wake chan struct{}
}

// Queue provides per-playlist mutual exclusion with priority ordering.
type Queue struct {
	log       zerolog.Logger
	idleGrace time.Duration

	mu     sync.Mutex
	lanes  map[string]*lane
	seq    uint64
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Queue. idleGrace controls how long an empty lane keeps its
// goroutine alive before retiring; zero selects a default.
func New(log zerolog.Logger, idleGrace time.Duration) *Queue {
	if idleGrace <= 0 {
		idleGrace = defaultIdleGrace
	}
	return &Queue{
		log:       log.With().Str("component", "queue").Logger(),
		idleGrace: idleGrace,
		lanes:     make(map[string]*lane),
		quit:      make(chan struct{}),
	}
}

// RunExclusive enqueues fn on the lane for playlistID and waits for its
// result. For one playlist id no two functions ever overlap; queued callers
// are served lowest priority value first, then in arrival order.
//
// If ctx is cancelled before fn completes, RunExclusive returns ctx.Err()
// but fn still runs: an enqueued operation always eventually executes, with
// a context detached from the caller's cancellation.
func (q *Queue) RunExclusive(ctx context.Context, playlistID string, prio Priority, label string, fn func(context.Context) error) error {
	j := &job{
		priority: prio,
		label:    label,
		ctx:      ctx,
		fn:       fn,
		done:     make(chan error, 1),
		enqueued: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.seq++
	j.seq = q.seq
	l, ok := q.lanes[playlistID]
	if !ok {
		l = &lane{id: playlistID, wake: make(chan struct{}, 1)}
		q.lanes[playlistID] = l
		q.wg.Add(1)
		go q.runLane(l)
		metrics.QueueLanes.Inc()
	}
	l.mu.Lock()
	heap.Push(&l.jobs, j)
	depth := len(l.jobs)
	l.mu.Unlock()
	q.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(playlistID).Set(float64(depth))
	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		metrics.QueueOperations.WithLabelValues(prio.String(), "abandoned").Inc()
		q.log.Warn().
			Str("playlist_id", playlistID).
			Str("operation", label).
			Msg("caller abandoned queued operation; it will still run")
		return ctx.Err()
	}
}

// Close rejects further enqueues, lets every queued operation finish, and
// waits for all lanes to retire.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) runLane(l *lane) {
	defer q.wg.Done()
	for {
		j := q.nextJob(l)
		if j == nil {
			return
		}
		q.execute(l, j)
	}
}

// nextJob pops the highest-ranked queued job, blocking until one arrives.
// It returns nil once the lane has been idle past the grace period (or the
// queue is closing) with nothing queued; the lane is removed from the map
// under q.mu before its goroutine exits, so an id observed in the map always
// has a live consumer.
func (q *Queue) nextJob(l *lane) *job {
	idle := time.NewTimer(q.idleGrace)
	defer idle.Stop()
	for {
		l.mu.Lock()
		if len(l.jobs) > 0 {
			j := heap.Pop(&l.jobs).(*job)
			l.mu.Unlock()
			return j
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-idle.C:
			if q.tryRetire(l) {
				return nil
			}
			idle.Reset(q.idleGrace)
		case <-q.quit:
			if q.tryRetire(l) {
				return nil
			}
		}
	}
}

func (q *Queue) tryRetire(l *lane) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.jobs) > 0 {
		return false
	}
	delete(q.lanes, l.id)
	metrics.QueueLanes.Dec()
	metrics.QueueDepth.DeleteLabelValues(l.id)
	return true
}

func (q *Queue) execute(l *lane, j *job) {
	metrics.QueueWaitDuration.WithLabelValues(j.priority.String()).Observe(time.Since(j.enqueued).Seconds())

	// The operation must complete even if the enqueuer's context is gone;
	// context values (correlation ids) are preserved.
	runCtx := context.WithoutCancel(j.ctx)
	start := time.Now()
	err := q.runJob(runCtx, j)
	elapsed := time.Since(start)

	metrics.QueueRunDuration.WithLabelValues(j.priority.String(), j.label).Observe(elapsed.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueueOperations.WithLabelValues(j.priority.String(), status).Inc()

	l.mu.Lock()
	depth := len(l.jobs)
	l.mu.Unlock()
	metrics.QueueDepth.WithLabelValues(l.id).Set(float64(depth))

	if err != nil {
		q.log.Error().Err(err).
			Str("playlist_id", l.id).
			Str("operation", j.label).
			Dur("elapsed", elapsed).
			Msg("queued operation failed")
	} else {
		q.log.Debug().
			Str("playlist_id", l.id).
			Str("operation", j.label).
			Dur("elapsed", elapsed).
			Msg("queued operation complete")
	}
	j.done <- err
}

func (q *Queue) runJob(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %q panicked: %v", j.label, r)
			q.log.Error().
				Str("operation", j.label).
				Str("stack", string(debug.Stack())).
				Msgf("panic in queued operation: %v", r)
		}
	}()
	return j.fn(ctx)
}
