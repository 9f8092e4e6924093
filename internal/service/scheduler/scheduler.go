// Package scheduler debounces background memory extraction: at most one
// live job exists per conversation, and every new Schedule call supersedes
// the pending one.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultExtractionTimeout = 5 * time.Minute

type jobState int

const (
	stateLive jobState = iota
	stateCancelled
	stateCompleted
)

type job struct {
	handle core.JobHandle
	state  jobState
	timer  Timer
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithJournal persists live jobs so pending extractions survive a restart.
func WithJournal(j core.JobJournal) Option {
	return func(s *Scheduler) { s.journal = j }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

var _ core.Scheduler = (*Scheduler)(nil)

type Scheduler struct {
	trigger core.ExtractionTrigger
	journal core.JobJournal
	clock   Clock
	timeout time.Duration

	// mu guards everything below; fire, Schedule and Cancel all decide a
	// job's fate while holding it.
	mu      sync.Mutex
	seq     uint64
	live    map[string]*job
	baseCtx context.Context
	stop    context.CancelFunc
	logger  zerolog.Logger
	closed  bool
	running sync.WaitGroup

	// touched records conversations scheduled or cancelled before the
	// journal was restored; their journal entries are stale. nil once
	// restore ran or when there is no journal.
	touched map[string]struct{}
}

func New(trigger core.ExtractionTrigger, opts ...Option) *Scheduler {
	s := &Scheduler{
		trigger: trigger,
		clock:   realClock{},
		timeout: DefaultExtractionTimeout,
		live:    make(map[string]*job),
		baseCtx: context.Background(),
		stop:    func() {},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal != nil {
		s.touched = make(map[string]struct{})
	}
	return s
}

// Start binds the scheduler to ctx (logger and cancellation for extraction
// runs) and re-arms jobs left in the journal by a previous process.
func (s *Scheduler) Start(ctx context.Context) error {
	base, stop := context.WithCancel(log.WithComponent(ctx, "scheduler"))

	s.mu.Lock()
	s.baseCtx = base
	s.stop = stop
	s.logger = *log.FromCtx(base)
	s.mu.Unlock()

	if s.journal == nil {
		return nil
	}
	return s.restore(base)
}

func (s *Scheduler) restore(ctx context.Context) error {
	maxSeq, err := s.journal.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("read journal seq: %w", err)
	}
	pending, err := s.journal.Pending(ctx)
	if err != nil {
		return fmt.Errorf("read pending jobs: %w", err)
	}

	s.mu.Lock()
	if maxSeq > s.seq {
		s.seq = maxSeq
	}

	// Jobs scheduled before the journal was read are newer than anything in
	// it, but may carry a seq the journal already used. Re-issue them.
	early := make([]*job, 0, len(s.live))
	for _, cur := range s.live {
		if cur.handle.Seq <= maxSeq {
			early = append(early, cur)
		}
	}
	var refreshed []*job
	for _, cur := range early {
		s.seq++
		next := &job{handle: cur.handle, state: stateLive}
		next.handle.Seq = s.seq
		s.cancelLocked(cur)
		s.live[cur.handle.ConversationID] = next
		refreshed = append(refreshed, next)
	}

	var stale []core.JobRecord
	now := s.clock.Now()
	for _, rec := range pending {
		if _, ok := s.touched[rec.ConversationID]; ok {
			if _, live := s.live[rec.ConversationID]; !live {
				stale = append(stale, rec)
			}
			continue
		}

		j := &job{
			handle: core.JobHandle{
				ID:             rec.ID,
				ConversationID: rec.ConversationID,
				Seq:            rec.Seq,
				FireAt:         rec.FireAt,
				Params:         rec.Params,
			},
			state: stateLive,
		}
		s.live[rec.ConversationID] = j
		s.armLocked(j, rec.FireAt.Sub(now))
	}
	s.touched = nil
	s.mu.Unlock()

	for _, rec := range stale {
		s.journalDelete(ctx, rec.ConversationID, rec.Seq)
	}
	for _, j := range refreshed {
		s.persistAndArm(ctx, j)
	}

	s.logger.Info().
		Int("jobs", len(pending)-len(stale)).
		Int("refreshed", len(refreshed)).
		Uint64("seq", maxSeq).
		Msg("restored pending extractions")
	return nil
}

// Schedule installs a new live job for conversationID, cancelling the
// previous one. When it returns, the new job is the only live job for the
// conversation and the superseded job can no longer fire.
//
// After Shutdown the job is only written to the journal, for the next
// process to pick up.
func (s *Scheduler) Schedule(conversationID string, delay time.Duration, params core.ExtractionParams) core.JobHandle {
	if delay < 0 {
		delay = 0
	}
	id := newJobID()

	s.mu.Lock()
	s.seq++
	j := &job{
		handle: core.JobHandle{
			ID:             id,
			ConversationID: conversationID,
			Seq:            s.seq,
			FireAt:         s.clock.Now().Add(delay),
			Params:         params,
		},
		state: stateLive,
	}
	ctx := s.baseCtx
	if s.closed {
		s.mu.Unlock()
		if s.journal != nil {
			s.journalSave(ctx, j.handle)
		}
		s.logger.Warn().Str("conversation", conversationID).Msg("scheduler closed, extraction left to the journal")
		return j.handle
	}

	if s.touched != nil {
		s.touched[conversationID] = struct{}{}
	}
	if prev, ok := s.live[conversationID]; ok {
		s.cancelLocked(prev)
		s.logger.Debug().
			Str("conversation", conversationID).
			Uint64("superseded", prev.handle.Seq).
			Uint64("seq", j.handle.Seq).
			Msg("extraction rescheduled")
	}
	s.live[conversationID] = j
	if s.journal == nil {
		s.armLocked(j, delay)
	}
	s.mu.Unlock()

	if s.journal != nil {
		s.persistAndArm(ctx, j)
	}
	return j.handle
}

// persistAndArm journals j, then arms it if it is still the live job. The
// record must exist before the job can fire, otherwise the delete issued on
// fire could land first and leave a stale entry behind.
func (s *Scheduler) persistAndArm(ctx context.Context, j *job) {
	cid := j.handle.ConversationID
	s.journalSave(ctx, j.handle)

	s.mu.Lock()
	stillLive := j.state == stateLive && s.live[cid] == j
	if stillLive && !s.closed {
		s.armLocked(j, j.handle.FireAt.Sub(s.clock.Now()))
	}
	s.mu.Unlock()

	if !stillLive {
		s.journalDelete(ctx, cid, j.handle.Seq)
	}
}

// Cancel drops the live job of conversationID. It reports whether there was
// one; fired and already cancelled jobs are not affected.
func (s *Scheduler) Cancel(conversationID string) bool {
	s.mu.Lock()
	if s.touched != nil {
		s.touched[conversationID] = struct{}{}
	}
	j, ok := s.live[conversationID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.cancelLocked(j)
	ctx := s.baseCtx
	s.mu.Unlock()

	s.logger.Debug().Str("conversation", conversationID).Uint64("seq", j.handle.Seq).Msg("extraction cancelled")
	if s.journal != nil {
		s.journalDelete(ctx, conversationID, j.handle.Seq)
	}
	return true
}

// Live returns the pending job of conversationID, if any.
func (s *Scheduler) Live(conversationID string) (core.JobHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.live[conversationID]
	if !ok {
		return core.JobHandle{}, false
	}
	return j.handle, true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown stops all timers without touching the journal, so pending jobs
// are re-armed on the next Start, and waits for running extractions.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, j := range s.live {
		if j.timer != nil {
			j.timer.Stop()
		}
	}
	s.live = make(map[string]*job)
	stop := s.stop
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	defer stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running extractions: %w", ctx.Err())
	}
}

func (s *Scheduler) armLocked(j *job, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	j.timer = s.clock.AfterFunc(delay, func() {
		s.fire(j)
	})
}

func (s *Scheduler) cancelLocked(j *job) {
	j.state = stateCancelled
	if j.timer != nil {
		j.timer.Stop()
	}
	if cur, ok := s.live[j.handle.ConversationID]; ok && cur == j {
		delete(s.live, j.handle.ConversationID)
	}
}

func (s *Scheduler) fire(j *job) {
	cid := j.handle.ConversationID

	s.mu.Lock()
	if j.state != stateLive || s.live[cid] != j || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.live, cid)
	j.state = stateCompleted
	s.running.Add(1)
	base := s.baseCtx
	logger := s.logger
	s.mu.Unlock()

	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("conversation", cid).Interface("panic", r).Msg("extraction panicked")
		}
	}()

	if s.journal != nil {
		s.journalDelete(base, cid, j.handle.Seq)
	}

	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	start := time.Now()
	logger.Info().
		Str("conversation", cid).
		Str("user", j.handle.Params.UserID).
		Uint64("seq", j.handle.Seq).
		Msg("memory extraction starting")

	if err := s.trigger.Extract(ctx, cid, j.handle.Params); err != nil {
		logger.Error().Err(err).Str("conversation", cid).Msg("memory extraction failed")
		return
	}
	logger.Info().Str("conversation", cid).Dur("took", time.Since(start)).Msg("memory extraction finished")
}

func (s *Scheduler) journalSave(ctx context.Context, h core.JobHandle) {
	err := s.journal.Save(ctx, core.JobRecord{
		ID:             h.ID,
		ConversationID: h.ConversationID,
		Seq:            h.Seq,
		FireAt:         h.FireAt,
		Params:         h.Params,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("conversation", h.ConversationID).Msg("failed to journal job")
	}
}

func (s *Scheduler) journalDelete(ctx context.Context, conversationID string, seq uint64) {
	if err := s.journal.Delete(ctx, conversationID, seq); err != nil {
		s.logger.Error().Err(err).Str("conversation", conversationID).Msg("failed to drop journaled job")
	}
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
