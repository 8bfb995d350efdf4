package audit

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"linechat/cmd/internal/chat"
)

type blockingStore struct {
	*InMemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, ev Event) error {
	<-s.release
	return s.InMemoryStore.Append(ctx, ev)
}

type failingStore struct {
	InMemoryStore
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Append(context.Context, Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("disk on fire")
}

func TestRecorder_WritesEventsInOrder(t *testing.T) {
	t.Parallel()

	st := NewInMemoryStore(16)
	rec := NewRecorder(nil, st, 8)

	at := time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)
	rec.SessionJoined(chat.SessionInfo{ID: "s1", Name: "alice", Remote: "127.0.0.1:5000", At: at})
	rec.SessionLeft(chat.SessionInfo{ID: "s1", Name: "alice", At: at.Add(time.Minute)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := rec.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Kind != KindLeave || got[1].Kind != KindJoin {
		t.Fatalf("Recent()=%v want [leave join]", got)
	}
	if got[1].Remote != "127.0.0.1:5000" || !got[1].At.Equal(at) {
		t.Fatalf("join event mismatch: %+v", got[1])
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	t.Parallel()

	st := &blockingStore{InMemoryStore: NewInMemoryStore(16), release: make(chan struct{})}
	rec := NewRecorder(nil, st, 1)

	// the first event is taken by the writer goroutine and blocks in Append,
	// the second fills the buffer, the rest are dropped.
	rec.SessionJoined(chat.SessionInfo{ID: "s1", Name: "a"})
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.events) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("writer never picked up the first event")
		}
		time.Sleep(time.Millisecond)
	}
	rec.SessionJoined(chat.SessionInfo{ID: "s2", Name: "b"})
	rec.SessionJoined(chat.SessionInfo{ID: "s3", Name: "c"})
	rec.SessionJoined(chat.SessionInfo{ID: "s4", Name: "d"})

	if got := rec.Dropped(); got != 2 {
		t.Fatalf("Dropped()=%d want=2", got)
	}

	close(st.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec.SessionLeft(chat.SessionInfo{ID: "s1", Name: "a"})
	if got := rec.Dropped(); got != 3 {
		t.Fatalf("Dropped() after close=%d want=3", got)
	}
}

func TestRecorder_StoreErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	st := &failingStore{}
	rec := NewRecorder(nil, st, 4)
	rec.SessionJoined(chat.SessionInfo{ID: "s1", Name: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.calls != 1 {
		t.Fatalf("append calls=%d want=1", st.calls)
	}
}

func TestRecorder_ObservesChatServer(t *testing.T) {
	t.Parallel()

	st := NewInMemoryStore(16)
	rec := NewRecorder(nil, st, 16)

	srv, err := chat.NewServer(chat.WithObserver(rec))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	server, client := net.Pipe()
	if _, err := srv.Attach(server); err != nil {
		t.Fatalf("attach: %v", err)
	}

	_ = client.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(client)
	if _, err := r.ReadString('\n'); err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	if _, err := client.Write([]byte("alice\n")); err != nil {
		t.Fatalf("write name: %v", err)
	}
	if _, err := r.ReadString('\n'); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if _, err := client.Write([]byte("/quit\n")); err != nil {
		t.Fatalf("write quit: %v", err)
	}

	srv.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close recorder: %v", err)
	}

	got, _ := st.Recent(context.Background(), 10)
	if len(got) != 2 || got[0].Kind != KindLeave || got[1].Kind != KindJoin || got[0].Name != "alice" {
		t.Fatalf("ledger=%v want [leave join] for alice", got)
	}
}
