package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/exam"
	"github.com/prepdesk/prepdesk-backend/internal/middleware"
	"github.com/prepdesk/prepdesk-backend/internal/service"
)

type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, topic string, count int) ([]exam.RawQuestion, error) {
	batch := make([]exam.RawQuestion, count)
	for i := range batch {
		batch[i] = exam.RawQuestion{
			Prompt:        "What is 6 x 7?",
			Options:       []string{"42", "36", "48", "54"},
			CorrectAnswer: "42",
			Topic:         topic,
		}
	}
	return batch, nil
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, exam.AttemptRecord) error { return nil }

func waitActive(t *testing.T, s *exam.Session) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Phase() == exam.PhaseActive {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never became active, stuck at %s", s.Phase())
}

// newStreamServer hosts AttemptStream behind a test route that injects the
// user's claims the way the JWT middleware would.
func newStreamServer(t *testing.T, host *service.AttemptHost, userID string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWSHandler(host, zerolog.Nop(), nil)
	r.GET("/stream", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: userID})
		h.AttemptStream(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("upgrade status = %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// Pings answered by the read loop and session events pushed by the writer
// must share one connection writer; interleaving them from two goroutines
// corrupts frames. Run with -race.
func TestAttemptStreamConcurrentPingsAndEvents(t *testing.T) {
	cfg := &config.Config{ProctorAttempts: 1000, GenerationTimeout: 5 * time.Second}
	host := service.NewAttemptHost(cfg, fixedGenerator{}, discardRecorder{}, zerolog.Nop())

	preset, _ := config.FindPreset("aptitude-sprint")
	session, err := host.StartAttempt("user-1", preset)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	waitActive(t, session)

	srv := newStreamServer(t, host, "user-1")
	conn := dialStream(t, srv)

	// First frame is always the full snapshot.
	var first struct {
		Event string `json:"event"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Event != "state" {
		t.Fatalf("first frame event = %q, want state", first.Event)
	}

	const rounds = 50
	pingsDone := make(chan struct{})
	go func() {
		defer close(pingsDone)
		for i := 0; i < rounds; i++ {
			if err := conn.WriteJSON(map[string]string{"action": "ping"}); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		for i := 0; i < rounds; i++ {
			session.VisibilityLost()
			time.Sleep(time.Millisecond)
		}
	}()

	// Every frame must decode cleanly while pongs and warnings interleave.
	pongs, warnings := 0, 0
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && (pongs == 0 || warnings == 0) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Event string `json:"event"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("corrupt or failed frame after %d pongs / %d warnings: %v", pongs, warnings, err)
		}
		switch frame.Event {
		case "pong":
			pongs++
		case "proctor_warning":
			warnings++
		case "":
			t.Fatal("frame missing event field")
		}
	}
	<-pingsDone

	if pongs == 0 {
		t.Error("no pong received")
	}
	if warnings == 0 {
		t.Error("no proctor warning received")
	}
}

func TestAttemptStreamUnknownActionReported(t *testing.T) {
	cfg := &config.Config{ProctorAttempts: 3, GenerationTimeout: 5 * time.Second}
	host := service.NewAttemptHost(cfg, fixedGenerator{}, discardRecorder{}, zerolog.Nop())

	preset, _ := config.FindPreset("aptitude-sprint")
	session, err := host.StartAttempt("user-1", preset)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	waitActive(t, session)

	srv := newStreamServer(t, host, "user-1")
	conn := dialStream(t, srv)

	var first struct {
		Event string `json:"event"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"action": "teleport"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Event string `json:"event"`
			Error string `json:"error"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame.Event == "error" {
			if !strings.Contains(frame.Error, "teleport") {
				t.Fatalf("error = %q, want the offending action named", frame.Error)
			}
			return
		}
	}
	t.Fatal("no error frame received for unknown action")
}
