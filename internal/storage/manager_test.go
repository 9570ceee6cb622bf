package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/transport"
	"github.com/any-hub/arbiter/internal/unit"
)

func TestCreateAndAppendUnit(t *testing.T) {
	m := NewManager("", Options{})
	held, err := m.CreateAndAppendUnit("x", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if held.Alias() != "x" {
		t.Fatalf("alias mismatch: %s", held.Alias())
	}
	if data, _ := held.Data().(map[string]any); data["a"] != 1 {
		t.Fatalf("data mismatch: %v", held.Data())
	}
	stored, ok := m.GetUnit("x")
	if !ok || stored != held {
		t.Fatalf("registry should contain the unit at x")
	}
}

func TestCreateAndAppendUnitRejectsEmptyAlias(t *testing.T) {
	m := NewManager("", Options{})
	if _, err := m.CreateAndAppendUnit("", 1); !errors.Is(err, unit.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("registry should be unchanged")
	}
}

func TestAppendUnitRejectsNilHolders(t *testing.T) {
	m := NewManager("", Options{})
	var nilUnit *unit.Unit
	var nilArbiter *unit.Arbiter
	for _, holder := range []unit.Holder{nil, nilUnit, nilArbiter} {
		if _, err := m.AppendUnit("x", holder); !errors.Is(err, unit.ErrInvalidArgument) {
			t.Fatalf("holder %T: expected ErrInvalidArgument, got %v", holder, err)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("registry should be unchanged")
	}
}

func TestAppendUnitStrictCollision(t *testing.T) {
	m := NewManager("", Options{})
	first, _ := unit.New("dup", "first")
	second, _ := unit.New("dup", "second")

	if _, err := m.AppendUnit("dup", first); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	_, err := m.AppendUnit("dup", second)
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("second append should fail with collision, got %v", err)
	}
	stored, _ := m.GetUnit("dup")
	if stored.Data() != "first" || m.Len() != 1 {
		t.Fatalf("registry should still hold only the first unit, got %v", stored.Data())
	}
}

func TestAppendUnitSkipReturnsOccupant(t *testing.T) {
	logBuf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logBuf)

	m := NewManager("", Options{
		Collision: CollisionOptions{DontCreateUnitOnCollision: true, AllowCollisions: true},
		Logger:    logger,
	})
	first, _ := m.CreateAndAppendUnit("k", "first")
	got, err := m.CreateAndAppendUnit("k", "second")
	if err != nil {
		t.Fatalf("skip mode should not fail: %v", err)
	}
	if got != first || got.Data() != "first" {
		t.Fatalf("skip mode should return the occupant, got %v", got.Data())
	}
	if !strings.Contains(logBuf.String(), "skipped") {
		t.Fatalf("skip should be logged as warning, got %s", logBuf.String())
	}
}

func TestAppendUnitAllowOverwrites(t *testing.T) {
	m := NewManager("", Options{Collision: CollisionOptions{AllowCollisions: true}})
	_, _ = m.CreateAndAppendUnit("k", "first")
	got, err := m.CreateAndAppendUnit("k", "second")
	if err != nil {
		t.Fatalf("allow mode should not fail: %v", err)
	}
	if got.Data() != "second" {
		t.Fatalf("allow mode should overwrite, got %v", got.Data())
	}
	if stored, _ := m.GetUnit("k"); stored != got {
		t.Fatalf("registry should hold the new unit")
	}
}

func TestCreateAndAppendArbiterUnitKeyedByRoute(t *testing.T) {
	m := NewManager("https://api.test", Options{})
	held, err := m.CreateAndAppendArbiterUnit("/foo", "")
	if err != nil {
		t.Fatalf("create arbiter failed: %v", err)
	}
	arbiter, ok := held.(*unit.Arbiter)
	if !ok {
		t.Fatalf("expected *unit.Arbiter, got %T", held)
	}
	if arbiter.FullURL() != "https://api.test/foo" {
		t.Fatalf("full url mismatch: %s", arbiter.FullURL())
	}
	if stored, ok := m.GetUnit("/foo"); !ok || stored != held {
		t.Fatalf("arbiter should be keyed at /foo")
	}
	if arbiter.Alias() != "https://api.test/foo" {
		t.Fatalf("arbiter alias should default to full url, got %s", arbiter.Alias())
	}
}

func TestCreateAndAppendArbiterUnitWithAlias(t *testing.T) {
	m := NewManager("https://api.test", Options{})
	held, err := m.CreateAndAppendArbiterUnit("/users?page=1", "users")
	if err != nil {
		t.Fatalf("create arbiter failed: %v", err)
	}
	if held.Alias() != "users" {
		t.Fatalf("alias mismatch: %s", held.Alias())
	}
	if _, ok := m.GetUnit("/users?page=1"); ok {
		t.Fatalf("route should not be used as key when alias given")
	}
	if held.(*unit.Arbiter).FullURL() != "https://api.test/users?page=1" {
		t.Fatalf("route should be concatenated verbatim")
	}
}

func TestCreateAndAppendArbiterUnitConfigurationErrors(t *testing.T) {
	testCases := []struct {
		name      string
		serverURL string
		route     string
		field     string
	}{
		{"missing route", "https://api.test", "", "arbiterRoute"},
		{"missing server url", "", "/foo", "serverUrl"},
		{"missing both", "", "", "serverUrl"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(tc.serverURL, Options{})
			_, err := m.CreateAndAppendArbiterUnit(tc.route, "")
			var cfgErr *unit.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, cfgErr.Field)
			}
			if m.Len() != 0 {
				t.Fatalf("registry should be unchanged")
			}
		})
	}
}

func TestCreateAndAppendArbiterUnitCollisionPolicy(t *testing.T) {
	strict := NewManager("https://api.test", Options{})
	if _, err := strict.CreateAndAppendArbiterUnit("/foo", ""); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := strict.CreateAndAppendArbiterUnit("/foo", ""); !errors.Is(err, ErrCollision) {
		t.Fatalf("strict mode should raise collision on arbiter path, got %v", err)
	}

	skip := NewManager("https://api.test", Options{Collision: CollisionOptions{DontCreateUnitOnCollision: true}})
	first, _ := skip.CreateAndAppendUnit("/foo", "static")
	got, err := skip.CreateAndAppendArbiterUnit("/foo", "")
	if err != nil {
		t.Fatalf("skip mode should not fail: %v", err)
	}
	if got != first {
		t.Fatalf("skip mode should return the occupant")
	}
	if _, ok := got.(*unit.Arbiter); ok {
		t.Fatalf("occupant should not be replaced by an arbiter")
	}
}

func TestRemoveUnit(t *testing.T) {
	m := NewManager("", Options{})
	_, _ = m.CreateAndAppendUnit("gone", 1)
	if !m.RemoveUnit("gone") {
		t.Fatalf("remove should report existing unit")
	}
	if _, err := m.CreateAndAppendUnit("gone", 2); err != nil {
		t.Fatalf("alias should be free after removal: %v", err)
	}
}

func TestManagerDispatch(t *testing.T) {
	var calls int
	tr := transport.Func(func(_ context.Context, url string, payload any) (any, error) {
		calls++
		if payload != nil {
			return map[string]any{"echo": payload}, nil
		}
		return url, nil
	})
	m := NewManager("https://api.test", Options{Transport: tr})
	_, _ = m.CreateAndAppendArbiterUnit("/foo", "")
	_, _ = m.CreateAndAppendUnit("static", 1)

	got, err := m.Dispatch(context.Background(), "/foo", nil)
	if err != nil || got != "https://api.test/foo" {
		t.Fatalf("unexpected dispatch result %v %v", got, err)
	}
	if _, err := m.Dispatch(context.Background(), "static", nil); !errors.Is(err, ErrNotFetchable) {
		t.Fatalf("expected ErrNotFetchable, got %v", err)
	}
	if _, err := m.Dispatch(context.Background(), "nope", nil); !errors.Is(err, ErrUnitNotFound) {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 transport call, got %d", calls)
	}
}

func TestManagerDispatchFailureDowngraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewManager(srv.URL, Options{})
	held, _ := m.CreateAndAppendArbiterUnit("/flaky", "")
	held.SetData("cached")

	got, err := m.Dispatch(context.Background(), "/flaky", nil)
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if got != nil || held.Data() != nil {
		t.Fatalf("failed refresh should clear data, got %v", held.Data())
	}
}

func TestRefreshAll(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	tr := transport.Func(func(_ context.Context, url string, payload any) (any, error) {
		if payload != nil {
			t.Errorf("refresh should use GET, got payload %v", payload)
		}
		mu.Lock()
		seen[url] = true
		mu.Unlock()
		return map[string]any{"url": url}, nil
	})
	m := NewManager("https://api.test", Options{Transport: tr})
	for _, route := range []string{"/a", "/b", "/c"} {
		if _, err := m.CreateAndAppendArbiterUnit(route, ""); err != nil {
			t.Fatalf("create %s failed: %v", route, err)
		}
	}
	_, _ = m.CreateAndAppendUnit("static", 1)
	dyn, _ := unit.NewDynamic("dynamic")
	_, _ = m.AppendUnit("dynamic", dyn)

	refreshed, err := m.RefreshAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshed != 3 {
		t.Fatalf("expected 3 refreshed units, got %d", refreshed)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct urls, got %v", seen)
	}
	held, _ := m.GetUnit("/b")
	if held.(*unit.Arbiter).Query("url").String() != "https://api.test/b" {
		t.Fatalf("unit data not refreshed: %v", held.Data())
	}
}

func TestRefreshAllCountsOnlyUnitsWithData(t *testing.T) {
	tr := transport.Func(func(_ context.Context, url string, _ any) (any, error) {
		if strings.HasSuffix(url, "/broken") {
			return nil, transport.ErrUnexpectedStatus
		}
		return map[string]any{"ok": true}, nil
	})
	m := NewManager("https://api.test", Options{Transport: tr})
	for _, route := range []string{"/ok", "/broken"} {
		if _, err := m.CreateAndAppendArbiterUnit(route, ""); err != nil {
			t.Fatalf("create %s failed: %v", route, err)
		}
	}

	refreshed, err := m.RefreshAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("failed fetches should not surface: %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("expected 1 refreshed unit, got %d", refreshed)
	}
	if held, _ := m.GetUnit("/broken"); held.Data() != nil {
		t.Fatalf("failed refresh should clear data, got %v", held.Data())
	}
}

func TestRefreshAllEmpty(t *testing.T) {
	m := NewManager("", Options{})
	if n, err := m.RefreshAll(context.Background(), 0); n != 0 || err != nil {
		t.Fatalf("empty refresh should be a no-op, got %d %v", n, err)
	}
}

func TestConcurrentAppendSameAlias(t *testing.T) {
	m := NewManager("", Options{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, collisions := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.CreateAndAppendUnit("shared", i)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCollision):
				collisions++
			}
		}(i)
	}
	wg.Wait()
	if successes != 1 || collisions != 19 {
		t.Fatalf("exactly one append should win, got %d successes %d collisions", successes, collisions)
	}
}
