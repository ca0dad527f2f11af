package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"
)

// setChecker — IDChecker поверх множества выпущенных идентификаторов.
type setChecker struct {
	mu    sync.Mutex
	taken map[string]bool
	err   error
	calls int
}

func (c *setChecker) Exists(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.taken[id], nil
}

func (c *setChecker) add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taken[id] = true
}

var idPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

func TestCandidateID_Format(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := candidateID("page-1", "user-1", ts, "nonce")
	if !idPattern.MatchString(id) {
		t.Errorf("candidateID = %q, ожидалось 8 hex-символов в верхнем регистре", id)
	}
	if again := candidateID("page-1", "user-1", ts, "nonce"); again != id {
		t.Errorf("candidateID не детерминирован: %q != %q", again, id)
	}
	if other := candidateID("page-1", "user-1", ts, "nonce-2"); other == id {
		t.Error("другой nonce должен давать другой кандидат")
	}
}

func TestMint_UniqueAcrossManyArticles(t *testing.T) {
	checker := &setChecker{taken: make(map[string]bool)}
	m := NewIdentifierMinter(checker, 0, discardLogger())

	const n = 10000
	for i := 0; i < n; i++ {
		id, err := m.Mint(context.Background(), "page-1", "user-1")
		if err != nil {
			t.Fatalf("Mint() #%d: %v", i, err)
		}
		if !idPattern.MatchString(id) {
			t.Fatalf("Mint() = %q, неверный формат", id)
		}
		if checker.taken[id] {
			t.Fatalf("Mint() выдал занятый идентификатор %q", id)
		}
		checker.add(id)
	}
	if len(checker.taken) != n {
		t.Errorf("выпущено %d уникальных идентификаторов, ожидалось %d", len(checker.taken), n)
	}
}

func TestMint_RetriesOnCollision(t *testing.T) {
	checker := &setChecker{taken: make(map[string]bool)}
	m := NewIdentifierMinter(checker, 0, discardLogger())

	// Первые два кандидата заняты
	nonces := []string{"a", "b", "c"}
	i := 0
	m.nonce = func() string { n := nonces[i]; i++; return n }
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return ts }
	checker.add(candidateID("p", "u", ts, "a"))
	checker.add(candidateID("p", "u", ts, "b"))

	id, err := m.Mint(context.Background(), "p", "u")
	if err != nil {
		t.Fatalf("Mint() ошибка: %v", err)
	}
	if want := candidateID("p", "u", ts, "c"); id != want {
		t.Errorf("Mint() = %q, ожидалось %q", id, want)
	}
	if checker.calls != 3 {
		t.Errorf("проверок = %d, ожидалось 3", checker.calls)
	}
}

func TestMint_Exhausted(t *testing.T) {
	m := NewIdentifierMinter(alwaysTaken{}, 0, discardLogger())

	_, err := m.Mint(context.Background(), "p", "u")
	if !errors.Is(err, ErrIdentifierExhausted) {
		t.Fatalf("ожидалась ErrIdentifierExhausted, получено: %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf = %s, ожидалось CONFLICT", KindOf(err))
	}
}

func TestMint_StorageError(t *testing.T) {
	checker := &setChecker{taken: map[string]bool{}, err: errBackend}
	m := NewIdentifierMinter(checker, 0, discardLogger())

	_, err := m.Mint(context.Background(), "p", "u")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("ожидалась ErrStorageUnavailable, получено: %v", err)
	}
}

func TestMint_ContextCanceledDuringDelay(t *testing.T) {
	m := NewIdentifierMinter(alwaysTaken{}, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Mint(ctx, "p", "u")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась context.Canceled, получено: %v", err)
	}
	if KindOf(err) != KindStorageUnavailable {
		t.Errorf("KindOf() = %s, ожидалось %s", KindOf(err), KindStorageUnavailable)
	}
}

type alwaysTaken struct{}

func (alwaysTaken) Exists(context.Context, string) (bool, error) { return true, nil }
