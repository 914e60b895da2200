package exam

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedGenerator returns a configurable batch, optionally blocking until
// released so tests can exercise the stale-response path.
type scriptedGenerator struct {
	mu    sync.Mutex
	batch []RawQuestion
	err   error
	block chan struct{}
}

func (g *scriptedGenerator) Generate(ctx context.Context, topic string, count int) ([]RawQuestion, error) {
	g.mu.Lock()
	block := g.block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batch, g.err
}

func (g *scriptedGenerator) set(batch []RawQuestion, err error) {
	g.mu.Lock()
	g.batch = batch
	g.err = err
	g.mu.Unlock()
}

type countingRecorder struct {
	mu      sync.Mutex
	records []AttemptRecord
}

func (r *countingRecorder) Record(ctx context.Context, record AttemptRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return nil
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func newTestSession(cfg Config, gen Generator, rec Recorder) (*Session, chan Event) {
	events := make(chan Event, 256)
	s := NewSession(cfg, gen, rec, zerolog.Nop(), func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	})
	return s, events
}

func waitEvent(t *testing.T, events <-chan Event, typ EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func baseConfig() Config {
	return Config{
		UserID:          "user-1",
		Topic:           "aptitude",
		QuestionCount:   20,
		DurationSeconds: 2400,
		TickInterval:    time.Hour, // clock advanced manually unless a test overrides
	}
}

func TestSessionStartBecomesActive(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(20)}
	s, events := newTestSession(baseConfig(), gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	snap := s.Snapshot()
	if snap.Phase != PhaseActive {
		t.Errorf("phase = %s, want ACTIVE", snap.Phase)
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("current index = %d, want 0", snap.CurrentIndex)
	}
	if snap.RemainingSeconds != 2400 {
		t.Errorf("remaining = %d, want 2400", snap.RemainingSeconds)
	}
	if len(snap.Questions) != 20 {
		t.Errorf("questions = %d, want 20", len(snap.Questions))
	}

	// Starting again while active is a programming error, not a reset.
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() while active should fail")
	}
}

func TestSessionAnswerNavigateAndConfirmEnd(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(20)}
	rec := &countingRecorder{}
	s, events := newTestSession(baseConfig(), gen, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	s.SelectAnswer("42") // correct for the scripted batch
	s.NavigateTo(1)
	s.SelectAnswer("36") // wrong
	s.SelectAnswer("48") // overwrite is allowed, still wrong
	s.SelectAnswer("not an option") // must be ignored

	if !s.RequestEnd() {
		t.Fatal("RequestEnd() refused while active")
	}
	s.ConfirmEnd()

	ev := waitEvent(t, events, EventCompleted)
	if ev.Result == nil {
		t.Fatal("completed event missing result")
	}
	if ev.Result.TotalQuestions != 20 {
		t.Errorf("total = %d, want 20", ev.Result.TotalQuestions)
	}
	if ev.Result.Score != 1 {
		t.Errorf("score = %d, want 1", ev.Result.Score)
	}
	if ev.Result.TimeTakenSeconds != 0 {
		t.Errorf("time taken = %d, want 0 (no ticks elapsed)", ev.Result.TimeTakenSeconds)
	}

	snap := s.Snapshot()
	if snap.Questions[1].UserAnswer != "48" {
		t.Errorf("question 1 answer = %q, want overwritten %q", snap.Questions[1].UserAnswer, "48")
	}
	if snap.Questions[0].Status != StatusAnswered {
		t.Errorf("question 0 status = %s, want answered", snap.Questions[0].Status)
	}
}

func TestSessionConfirmEndIdempotent(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(5)}
	rec := &countingRecorder{}
	cfg := baseConfig()
	cfg.QuestionCount = 5
	s, events := newTestSession(cfg, gen, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)
	s.SelectAnswer("42")

	s.ConfirmEnd()
	waitEvent(t, events, EventCompleted)
	first := s.Result()

	s.ConfirmEnd()
	second := s.Result()

	if first == nil || second == nil {
		t.Fatal("result missing after completion")
	}
	if first.Score != second.Score || first.TimeTakenSeconds != second.TimeTakenSeconds {
		t.Errorf("results differ across ConfirmEnd calls: %+v vs %+v", first, second)
	}

	// The recorder runs asynchronously; give it a moment, then assert it was
	// invoked exactly once.
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("recorder invoked %d times, want 1", rec.count())
	}
}

func TestSessionProctorExhaustionForcesCompletion(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(20)}
	rec := &countingRecorder{}
	cfg := baseConfig()
	cfg.ProctorAttempts = 3
	s, events := newTestSession(cfg, gen, rec)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	s.VisibilityLost()
	warn := waitEvent(t, events, EventProctorWarning)
	if warn.AttemptsLeft != 2 {
		t.Errorf("attempts left = %d, want 2", warn.AttemptsLeft)
	}
	s.VisibilityLost()
	s.VisibilityLost()

	ev := waitEvent(t, events, EventCompleted)
	if ev.Result == nil {
		t.Fatal("forced completion emitted no result")
	}
	if s.Phase() != PhaseCompleted {
		t.Errorf("phase = %s, want COMPLETED", s.Phase())
	}

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("recorder invoked %d times, want 1", rec.count())
	}
	if rec.records[0].EndReason != EndReasonProctor {
		t.Errorf("end reason = %s, want proctor", rec.records[0].EndReason)
	}
}

func TestSessionTimerExpiryForcesCompletion(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(5)}
	cfg := baseConfig()
	cfg.QuestionCount = 5
	cfg.DurationSeconds = 2
	cfg.TickInterval = 5 * time.Millisecond
	s, events := newTestSession(cfg, gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	ev := waitEvent(t, events, EventCompleted)
	if ev.Result.Score != 0 {
		t.Errorf("score = %d, want 0 (nothing answered)", ev.Result.Score)
	}
	if ev.Result.TimeTakenSeconds != 2 {
		t.Errorf("time taken = %d, want full duration 2", ev.Result.TimeTakenSeconds)
	}

	snap := s.Snapshot()
	for i, q := range snap.Questions {
		if q.Status != StatusNotAnswered {
			t.Errorf("question %d status = %s, want not_answered", i, q.Status)
		}
	}
}

func TestSessionPostCompletionNoops(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(5)}
	cfg := baseConfig()
	cfg.QuestionCount = 5
	s, events := newTestSession(cfg, gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)
	s.SelectAnswer("42")
	s.ConfirmEnd()
	waitEvent(t, events, EventCompleted)

	before := s.Snapshot()

	s.SelectAnswer("36")
	s.NavigateTo(3)
	s.ToggleMark()
	s.VisibilityLost()
	s.CancelEnd()

	// A late timer tick must also be swallowed.
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	timer.tick()

	after := s.Snapshot()
	if after.Phase != PhaseCompleted {
		t.Fatalf("phase changed after completion: %s", after.Phase)
	}
	if after.CurrentIndex != before.CurrentIndex {
		t.Errorf("cursor moved after completion")
	}
	if after.Result.Score != before.Result.Score {
		t.Errorf("score changed after completion")
	}
	if after.Questions[0].UserAnswer != before.Questions[0].UserAnswer {
		t.Errorf("answer mutated after completion")
	}
	if after.Questions[3].MarkedForReview {
		t.Errorf("mark toggled after completion")
	}
}

func TestSessionGenerationFailureAndRetry(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(15)} // short batch: 15 of 20
	s, events := newTestSession(baseConfig(), gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ev := waitEvent(t, events, EventFailed)
	if !strings.Contains(ev.Cause, "count mismatch") {
		t.Errorf("cause = %q, want count mismatch", ev.Cause)
	}
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %s, want FAILED", s.Phase())
	}

	// Retry with a healthy batch transitions normally to Active.
	gen.set(wellFormedBatch(20), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("retry Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)
	if s.Phase() != PhaseActive {
		t.Errorf("phase after retry = %s, want ACTIVE", s.Phase())
	}
}

func TestSessionDiscardsStaleGeneration(t *testing.T) {
	block := make(chan struct{})
	gen := &scriptedGenerator{batch: wellFormedBatch(20), block: block}
	s, events := newTestSession(baseConfig(), gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Phase() != PhaseLoading {
		t.Fatalf("phase = %s, want LOADING", s.Phase())
	}

	// Abandon while the generation call is still in flight; the late
	// response must be dropped, not applied.
	s.Abandon()
	close(block)

	time.Sleep(100 * time.Millisecond)
	if s.Phase() != PhaseFailed {
		t.Errorf("phase = %s, want FAILED after abandon", s.Phase())
	}
	select {
	case ev := <-events:
		if ev.Type == EventActive {
			t.Error("stale generation response activated an abandoned session")
		}
	default:
	}
}

func TestSessionAbandonAtActivationStopsClock(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(5)}
	cfg := baseConfig()
	cfg.QuestionCount = 5
	cfg.TickInterval = 5 * time.Millisecond
	s, events := newTestSession(cfg, gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	// Abandon immediately after activation. The clock is started under the
	// session lock, so the stop must always land on a running ticker and
	// leave no countdown goroutine behind.
	s.Abandon()

	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()

	before := timer.Remaining()
	time.Sleep(50 * time.Millisecond)
	if after := timer.Remaining(); after != before {
		t.Errorf("clock still ticking after abandon: %d -> %d", before, after)
	}
	if s.Phase() != PhaseFailed {
		t.Errorf("phase = %s, want FAILED", s.Phase())
	}
}

func TestSessionMarkForReviewStatus(t *testing.T) {
	gen := &scriptedGenerator{batch: wellFormedBatch(5)}
	cfg := baseConfig()
	cfg.QuestionCount = 5
	s, events := newTestSession(cfg, gen, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitEvent(t, events, EventActive)

	s.ToggleMark()
	if got := s.Snapshot().Questions[0].Status; got != StatusMarked {
		t.Errorf("status = %s, want marked", got)
	}

	s.SelectAnswer("42")
	if got := s.Snapshot().Questions[0].Status; got != StatusAnsweredMarked {
		t.Errorf("status = %s, want answered_marked", got)
	}

	s.ToggleMark()
	if got := s.Snapshot().Questions[0].Status; got != StatusAnswered {
		t.Errorf("status = %s, want answered", got)
	}

	// Navigation clamps rather than fails.
	s.NavigateTo(99)
	if got := s.Snapshot().CurrentIndex; got != 4 {
		t.Errorf("clamped index = %d, want 4", got)
	}
	s.NavigateTo(-5)
	if got := s.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("clamped index = %d, want 0", got)
	}
}
