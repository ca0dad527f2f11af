package membership

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMembershipServer — mock сервиса членства.
// members — ключ "pageId/callerId", значение — active.
func newMembershipServer(t *testing.T, members map[string]bool, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/pages/{pageId}/members/{callerId}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		active, ok := members[r.PathValue("pageId")+"/"+r.PathValue("callerId")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if active {
			_, _ = w.Write([]byte(`{"active":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"active":false}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestIsActiveMember(t *testing.T) {
	var calls atomic.Int32
	srv := newMembershipServer(t, map[string]bool{
		"page-1/alice": true,
		"page-1/bob":   false,
	}, &calls)
	c := New(srv.URL+"/", 5*time.Second, 100, time.Minute, testLogger())

	tests := []struct {
		name     string
		pageID   string
		callerID string
		want     bool
	}{
		{"активный участник", "page-1", "alice", true},
		{"неактивный участник", "page-1", "bob", false},
		{"не участник (404)", "page-1", "carol", false},
		{"другая страница", "page-2", "alice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.IsActiveMember(context.Background(), tt.pageID, tt.callerID)
			if err != nil {
				t.Fatalf("IsActiveMember() ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsActiveMember() = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestIsActiveMember_Cached(t *testing.T) {
	var calls atomic.Int32
	srv := newMembershipServer(t, map[string]bool{"page-1/alice": true}, &calls)
	c := New(srv.URL, 5*time.Second, 100, time.Minute, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, err := c.IsActiveMember(ctx, "page-1", "alice"); err != nil || !ok {
			t.Fatalf("IsActiveMember() = %v, %v", ok, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("запросов к сервису = %d, ожидался 1", calls.Load())
	}
}

func TestIsActiveMember_CacheExpires(t *testing.T) {
	var calls atomic.Int32
	srv := newMembershipServer(t, map[string]bool{"page-1/alice": true}, &calls)
	c := New(srv.URL, 5*time.Second, 100, 50*time.Millisecond, testLogger())
	ctx := context.Background()

	_, _ = c.IsActiveMember(ctx, "page-1", "alice")
	time.Sleep(150 * time.Millisecond)
	_, _ = c.IsActiveMember(ctx, "page-1", "alice")

	if calls.Load() != 2 {
		t.Errorf("запросов = %d, ожидалось 2 после истечения TTL", calls.Load())
	}
}

func TestIsActiveMember_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 100, time.Minute, testLogger())
	ctx := context.Background()

	if _, err := c.IsActiveMember(ctx, "page-1", "alice"); err == nil {
		t.Fatal("ожидалась ошибка при статусе 503")
	}
	// Ошибки не кэшируются
	_, _ = c.IsActiveMember(ctx, "page-1", "alice")
	if calls.Load() != 2 {
		t.Errorf("запросов = %d, ожидалось 2", calls.Load())
	}
}

func TestIsActiveMember_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 100, time.Minute, testLogger())
	if _, err := c.IsActiveMember(context.Background(), "page-1", "alice"); err == nil {
		t.Fatal("ожидалась ошибка декодирования")
	}
}

func TestIsActiveMember_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond, 100, time.Minute, testLogger())
	if _, err := c.IsActiveMember(context.Background(), "page-1", "alice"); err == nil {
		t.Fatal("ожидалась ошибка подключения")
	}
}
