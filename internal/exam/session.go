package exam

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseLoading    Phase = "LOADING"
	PhaseActive     Phase = "ACTIVE"
	PhaseFinalizing Phase = "FINALIZING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

const (
	defaultGenerationTimeout = 45 * time.Second
	recordTimeout            = 10 * time.Second
)

// Config parameterizes one exam attempt. Topic-specific behavior lives here
// as data, not as per-topic code paths.
type Config struct {
	UserID          string
	Topic           string
	QuestionCount   int
	DurationSeconds int
	// ProctorAttempts defaults to DefaultProctorAttempts when zero.
	ProctorAttempts int
	// GenerationTimeout bounds the question generation call, independent of
	// the exam clock (which has not started during loading).
	GenerationTimeout time.Duration
	// TrackQuestionTime accumulates per-question time while it is active.
	TrackQuestionTime bool
	// TickInterval overrides the one-second clock; tests shorten it.
	TickInterval time.Duration
}

// Session is the exam attempt state machine. All mutating operations are
// serialized under one mutex; timer ticks, visibility events, and user
// actions arriving after completion are no-ops. Event callbacks and
// collaborator calls always run outside the lock.
type Session struct {
	mu  sync.Mutex
	cfg Config
	gen Generator
	rec Recorder
	log zerolog.Logger

	// notify pushes events to the hosting layer. Must not block.
	notify func(Event)

	phase       Phase
	failCause   string
	questions   []*AnsweredQuestion
	current     int
	remaining   int
	endReq      bool
	loadSeq     uint64
	timer       *Countdown
	proctor     *Proctor
	result      *Result
	endReason   EndReason
	startedAt   time.Time
	activeSince time.Time
}

// NewSession creates a session in the NotStarted phase. notify may be nil.
func NewSession(cfg Config, gen Generator, rec Recorder, log zerolog.Logger, notify func(Event)) *Session {
	if cfg.DurationSeconds < 0 {
		cfg.DurationSeconds = 0
	}
	if cfg.ProctorAttempts <= 0 {
		cfg.ProctorAttempts = DefaultProctorAttempts
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Session{
		cfg:    cfg,
		gen:    gen,
		rec:    rec,
		log:    log.With().Str("component", "exam_session").Str("topic", cfg.Topic).Logger(),
		notify: notify,
		phase:  PhaseNotStarted,
	}
}

// Start requests question generation and transitions to Loading. Valid from
// NotStarted or Failed (retry). The generation call runs asynchronously with
// its own timeout; a response arriving after the session left Loading (user
// abandoned, retried) is discarded.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseNotStarted && s.phase != PhaseFailed {
		phase := s.phase
		s.mu.Unlock()
		return &InvalidOperationError{Op: "start", Phase: phase}
	}
	s.phase = PhaseLoading
	s.failCause = ""
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	go s.load(ctx, seq)
	return nil
}

func (s *Session) load(ctx context.Context, seq uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	raw, err := s.gen.Generate(ctx, s.cfg.Topic, s.cfg.QuestionCount)
	s.applyGeneration(seq, raw, err)
}

// applyGeneration handles the generation response. Stale responses (sequence
// moved on, or the session is no longer Loading) are dropped, not applied.
func (s *Session) applyGeneration(seq uint64, raw []RawQuestion, genErr error) {
	s.mu.Lock()
	if s.phase != PhaseLoading || seq != s.loadSeq {
		s.mu.Unlock()
		s.log.Debug().Uint64("seq", seq).Msg("Discarding stale generation response")
		return
	}

	if genErr != nil {
		s.phase = PhaseFailed
		s.failCause = genErr.Error()
		cause := s.failCause
		s.mu.Unlock()
		s.log.Warn().Err(genErr).Msg("Question generation failed")
		s.emit(Event{Type: EventFailed, Cause: cause})
		return
	}

	validated, err := ValidateSet(raw, s.cfg.QuestionCount)
	if err != nil {
		s.phase = PhaseFailed
		s.failCause = err.Error()
		cause := s.failCause
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("Question batch rejected")
		s.emit(Event{Type: EventFailed, Cause: cause})
		return
	}

	s.questions = make([]*AnsweredQuestion, len(validated))
	for i := range validated {
		s.questions[i] = &AnsweredQuestion{Question: validated[i]}
	}
	s.current = 0
	s.remaining = s.cfg.DurationSeconds
	s.endReq = false
	s.result = nil
	s.startedAt = time.Now()
	s.activeSince = s.startedAt

	s.timer = NewCountdown(s.cfg.TickInterval)
	s.timer.OnTick = s.handleTick
	s.timer.OnExpire = s.handleExpire

	s.proctor = NewProctor(s.cfg.ProctorAttempts)
	s.proctor.OnViolation = s.handleViolation
	s.proctor.OnExhausted = s.handleExhausted

	s.phase = PhaseActive
	duration := s.cfg.DurationSeconds
	// Start the clock before releasing the lock, so a ConfirmEnd or Abandon
	// racing the activation always finds a started timer to stop.
	s.timer.Start(duration)
	s.mu.Unlock()

	s.log.Info().Int("questions", len(validated)).Int("duration_s", duration).Msg("Attempt active")
	s.emit(Event{Type: EventActive, RemainingSeconds: duration})
}

// SelectAnswer records the answer for the current question, overwriting any
// previous choice. An option that does not belong to the question is ignored
// rather than allowed to corrupt state.
func (s *Session) SelectAnswer(option string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	q := s.questions[s.current]
	if !q.Question.hasOption(option) {
		return
	}
	q.UserAnswer = option
	q.Answered = true
}

// ToggleMark flips the mark-for-review flag on the current question.
func (s *Session) ToggleMark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	q := s.questions[s.current]
	q.MarkedForReview = !q.MarkedForReview
}

// NavigateTo moves the cursor, clamping out-of-bounds targets. Time spent on
// the question being left is accumulated when tracking is enabled.
func (s *Session) NavigateTo(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.questions)-1 {
		index = len(s.questions) - 1
	}
	if index == s.current {
		return
	}
	s.accumulateTimeLocked()
	s.current = index
}

func (s *Session) accumulateTimeLocked() {
	if !s.cfg.TrackQuestionTime {
		return
	}
	now := time.Now()
	elapsed := int(now.Sub(s.activeSince).Seconds())
	if elapsed > 0 {
		s.questions[s.current].TimeSpentSeconds += elapsed
	}
	s.activeSince = now
}

// RequestEnd flags that the user asked to end the attempt. It does not
// finalize; the caller surfaces a confirmation step and then calls either
// ConfirmEnd or CancelEnd. Returns false outside the Active phase.
func (s *Session) RequestEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return false
	}
	s.endReq = true
	return true
}

// CancelEnd withdraws a pending end request.
func (s *Session) CancelEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return
	}
	s.endReq = false
}

// ConfirmEnd finalizes the attempt on the user-initiated path. Idempotent:
// once Completed, further calls have no effect.
func (s *Session) ConfirmEnd() {
	s.finalize(EndReasonUser)
}

// VisibilityLost feeds one proctoring violation into the session. Ignored
// outside the Active phase.
func (s *Session) VisibilityLost() {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return
	}
	proctor := s.proctor
	s.mu.Unlock()
	proctor.VisibilityLost()
}

// Abandon tears the session down without scoring: stops the clock and the
// monitor and invalidates any in-flight generation response. Completed
// sessions are left untouched.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.phase == PhaseCompleted {
		s.mu.Unlock()
		return
	}
	s.loadSeq++
	s.phase = PhaseFailed
	s.failCause = "attempt abandoned"
	timer := s.timer
	proctor := s.proctor
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if proctor != nil {
		proctor.Stop()
	}
}

// ─── Timer / proctor callbacks ──────────────────────────────────────

func (s *Session) handleTick(remaining int) {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return
	}
	s.remaining = remaining
	s.mu.Unlock()

	if remaining > 0 {
		s.emit(Event{Type: EventTick, RemainingSeconds: remaining})
	}
}

func (s *Session) handleExpire() {
	s.finalize(EndReasonTimeExpired)
}

func (s *Session) handleViolation(remaining int) {
	s.mu.Lock()
	active := s.phase == PhaseActive
	s.mu.Unlock()
	if !active {
		return
	}
	s.log.Info().Int("attempts_left", remaining).Msg("Proctoring violation")
	s.emit(Event{Type: EventProctorWarning, AttemptsLeft: remaining})
}

func (s *Session) handleExhausted() {
	s.log.Warn().Msg("Proctoring attempts exhausted, force-submitting")
	s.finalize(EndReasonProctor)
}

// finalize is the single convergence point for user confirmation, timer
// expiry, and proctoring exhaustion. Only the first caller transitions
// Active → Finalizing → Completed; everyone else finds a non-Active phase
// and returns.
func (s *Session) finalize(reason EndReason) {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseFinalizing
	s.accumulateTimeLocked()

	result := ScoreAttempt(s.questions, s.cfg.DurationSeconds, s.remaining)
	s.result = &result
	s.endReason = reason
	s.phase = PhaseCompleted

	record := AttemptRecord{
		UserID:     s.cfg.UserID,
		Topic:      s.cfg.Topic,
		Result:     result,
		Questions:  s.snapshotQuestionsLocked(),
		EndReason:  reason,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
	}
	timer := s.timer
	proctor := s.proctor
	s.mu.Unlock()

	timer.Stop()
	proctor.Stop()

	s.log.Info().
		Str("reason", string(reason)).
		Int("score", result.Score).
		Int("total", result.TotalQuestions).
		Msg("Attempt completed")

	s.emit(Event{Type: EventCompleted, Result: &result})

	if s.rec != nil {
		go s.record(record)
	}
}

// record hands the completed attempt to the persistence collaborator.
// Failures are logged and never surfaced to the user; the result already
// shown is not rolled back.
func (s *Session) record(rec AttemptRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.rec.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist attempt history")
	}
}

func (s *Session) snapshotQuestionsLocked() []AnsweredQuestion {
	out := make([]AnsweredQuestion, len(s.questions))
	for i, q := range s.questions {
		out[i] = *q
	}
	return out
}

func (s *Session) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// ─── Read accessors ─────────────────────────────────────────────────

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result returns the scored result, or nil before completion.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// FailCause returns the human-readable generation/validation error, if any.
func (s *Session) FailCause() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failCause
}
