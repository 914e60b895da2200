package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/exam"
)

// Attempt lifecycle errors surfaced to the API layer.
var (
	ErrAttemptInProgress = errors.New("an attempt is already in progress")
	ErrNoActiveAttempt   = errors.New("no active attempt")
	ErrAttemptNotFailed  = errors.New("attempt is not in a retryable state")
)

// eventBufferSize bounds the per-attempt event channel. A WebSocket
// consumer that falls this far behind loses ticks, never lifecycle order.
const eventBufferSize = 256

// liveAttempt pairs a session with its event stream and originating preset.
type liveAttempt struct {
	session *exam.Session
	preset  config.ExamPreset
	events  chan exam.Event
}

// AttemptHost owns at most one exam session per user. It wires the question
// generator and the history recorder into new sessions and fans session
// events out to stream consumers through a buffered channel.
type AttemptHost struct {
	cfg *config.Config
	gen exam.Generator
	rec exam.Recorder
	log zerolog.Logger

	mu       sync.Mutex
	attempts map[string]*liveAttempt
}

// NewAttemptHost creates an empty host.
func NewAttemptHost(cfg *config.Config, gen exam.Generator, rec exam.Recorder, log zerolog.Logger) *AttemptHost {
	return &AttemptHost{
		cfg:      cfg,
		gen:      gen,
		rec:      rec,
		log:      log.With().Str("component", "attempt_host").Logger(),
		attempts: make(map[string]*liveAttempt),
	}
}

// StartAttempt creates and starts a session for the user. A finished or
// failed previous attempt is replaced; a live one is rejected.
func (h *AttemptHost) StartAttempt(userID string, preset config.ExamPreset) (*exam.Session, error) {
	h.mu.Lock()
	if existing, ok := h.attempts[userID]; ok {
		switch existing.session.Phase() {
		case exam.PhaseLoading, exam.PhaseActive, exam.PhaseFinalizing:
			h.mu.Unlock()
			return nil, ErrAttemptInProgress
		}
	}

	la := &liveAttempt{
		preset: preset,
		events: make(chan exam.Event, eventBufferSize),
	}
	la.session = exam.NewSession(exam.Config{
		UserID:            userID,
		Topic:             preset.Topic,
		QuestionCount:     preset.QuestionCount,
		DurationSeconds:   preset.DurationMinutes * 60,
		ProctorAttempts:   h.cfg.ProctorAttempts,
		GenerationTimeout: h.cfg.GenerationTimeout,
		TrackQuestionTime: preset.TrackQuestionTime,
	}, h.gen, h.rec, h.log.With().Str("user_id", userID).Logger(), func(ev exam.Event) {
		h.push(la, ev)
	})
	h.attempts[userID] = la
	session := la.session
	h.mu.Unlock()

	// The session outlives the HTTP request that started it.
	if err := session.Start(context.Background()); err != nil {
		return nil, err
	}

	h.log.Info().Str("user_id", userID).Str("preset", preset.ID).Msg("Attempt started")
	return session, nil
}

// push delivers an event without ever blocking the session goroutines.
// When the buffer is full the oldest event is dropped to make room, so a
// terminal event always gets through.
func (h *AttemptHost) push(la *liveAttempt, ev exam.Event) {
	for {
		select {
		case la.events <- ev:
			return
		default:
			select {
			case <-la.events:
			default:
			}
		}
	}
}

// Session returns the user's current session.
func (h *AttemptHost) Session(userID string) (*exam.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	la, ok := h.attempts[userID]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return la.session, nil
}

// Events returns the user's attempt event stream.
func (h *AttemptHost) Events(userID string) (<-chan exam.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	la, ok := h.attempts[userID]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return la.events, nil
}

// Preset returns the preset the user's current attempt was started from.
func (h *AttemptHost) Preset(userID string) (config.ExamPreset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	la, ok := h.attempts[userID]
	if !ok {
		return config.ExamPreset{}, ErrNoActiveAttempt
	}
	return la.preset, nil
}

// Retry restarts generation for a failed attempt. Only valid from Failed.
func (h *AttemptHost) Retry(userID string) error {
	h.mu.Lock()
	la, ok := h.attempts[userID]
	h.mu.Unlock()
	if !ok {
		return ErrNoActiveAttempt
	}

	if err := la.session.Start(context.Background()); err != nil {
		var invalid *exam.InvalidOperationError
		if errors.As(err, &invalid) {
			return ErrAttemptNotFailed
		}
		return err
	}
	h.log.Info().Str("user_id", userID).Msg("Attempt retry requested")
	return nil
}

// Abandon tears the user's attempt down and evicts it from the host.
func (h *AttemptHost) Abandon(userID string) error {
	h.mu.Lock()
	la, ok := h.attempts[userID]
	if ok {
		delete(h.attempts, userID)
	}
	h.mu.Unlock()
	if !ok {
		return ErrNoActiveAttempt
	}

	la.session.Abandon()
	h.log.Info().Str("user_id", userID).Msg("Attempt abandoned")
	return nil
}
