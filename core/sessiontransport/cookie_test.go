package sessiontransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mardix/voodoo-doll-auth/core/cookie"
	"github.com/mardix/voodoo-doll-auth/core/session"
	"github.com/mardix/voodoo-doll-auth/core/sessiontransport"
)

// memStore is an in-memory session.Store with the same contract as the real
// backends: unique tokens, primary-session eviction on create, expiry
// filtering on read and live-window counting.
type memStore struct {
	mu       sync.Mutex
	byToken  map[string]*session.Session
	liveTTL  time.Duration
	getCalls int
}

func newMemStore() *memStore {
	return &memStore{
		byToken: map[string]*session.Session{},
		liveTTL: 5 * time.Minute,
	}
}

func (s *memStore) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[sess.Token]; ok {
		return session.ErrDuplicateToken
	}
	if !sess.Shadow {
		for token, existing := range s.byToken {
			if existing.AccountID == sess.AccountID && !existing.Shadow {
				delete(s.byToken, token)
			}
		}
	}
	cp := *sess
	s.byToken[sess.Token] = &cp
	return nil
}

func (s *memStore) GetByToken(_ context.Context, token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	sess, ok := s.byToken[token]
	if !ok || sess.IsExpired() {
		return nil, session.ErrNotFound
	}
	if !sess.IsLive() {
		sess.LiveExpiresAt = time.Now().Add(s.liveTTL)
	}
	cp := *sess
	return &cp, nil
}

// lapseLive backdates a session's activity marker, as if its window elapsed.
func (s *memStore) lapseLive(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token].LiveExpiresAt = time.Now().Add(-time.Minute)
}

func (s *memStore) Touch(_ context.Context, sess *session.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byToken[sess.Token]
	if !ok {
		return session.ErrNotFound
	}
	stored.IP = sess.IP
	stored.ExpiresAt = time.Now().Add(ttl)
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SaveData(_ context.Context, sess *session.Session, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byToken[sess.Token]
	if !ok {
		return session.ErrNotFound
	}
	stored.Data = data
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Delete(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[sess.Token]; !ok {
		return session.ErrNotFound
	}
	delete(s.byToken, sess.Token)
	return nil
}

func (s *memStore) DeleteAll(_ context.Context, all bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, sess := range s.byToken {
		if all || sess.IsExpired() {
			delete(s.byToken, token)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Count(_ context.Context, all bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sess := range s.byToken {
		if all || sess.IsLive() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) sessions(accountID int64) []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*session.Session
	for _, sess := range s.byToken {
		if sess.AccountID == accountID {
			out = append(out, sess)
		}
	}
	return out
}

func newTransport(store session.Store) *sessiontransport.Cookie {
	mgr := session.NewManager(store, session.Config{TTL: time.Hour, LiveTTL: 5 * time.Minute})
	return sessiontransport.NewCookie(mgr, cookie.New(), "sid")
}

// carryCookies copies the session cookie from a previous response onto a new
// request, like a browser would.
func carryCookies(r *http.Request, w *httptest.ResponseRecorder) {
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
}

func TestScope_CreateResolveRoundTrip(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.RemoteAddr = "203.0.113.7:54321"

	created, err := transport.Scope(w, r).Create(1234)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", created.IP)

	// Cookie carries the raw token with expiry matching the record.
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, created.Token, cookies[0].Value)
	assert.InDelta(t, time.Hour.Seconds(), float64(cookies[0].MaxAge), 2)

	// A follow-up request carrying that cookie resolves to the same session.
	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	carryCookies(r2, w)

	got, err := transport.Scope(httptest.NewRecorder(), r2).Resolve()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Token, got.Token)
	assert.Equal(t, int64(1234), got.AccountID)
}

func TestScope_ResolveMemoizes(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	created, err := transport.Scope(w, r).Create(1234)
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	carryCookies(r2, w)
	scope := transport.Scope(httptest.NewRecorder(), r2)

	for i := 0; i < 5; i++ {
		got, err := scope.Resolve()
		require.NoError(t, err)
		assert.Equal(t, created.Token, got.Token)
	}
	assert.Equal(t, 1, store.getCalls)
}

func TestScope_NoCookieResolvesNil(t *testing.T) {
	t.Parallel()

	transport := newTransport(newMemStore())
	r := httptest.NewRequest(http.MethodGet, "/me", nil)

	got, err := transport.Scope(httptest.NewRecorder(), r).Resolve()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScope_LoginEvictsPrimary(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	first, err := transport.Scope(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil)).Create(1234)
	require.NoError(t, err)
	second, err := transport.Scope(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil)).Create(1234)
	require.NoError(t, err)

	// Only the newest primary survives.
	remaining := store.sessions(1234)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.Token, remaining[0].Token)

	_, err = store.GetByToken(context.Background(), first.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestScope_ShadowCoexistsWithPrimary(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	_, err := transport.Scope(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil)).Create(1234)
	require.NoError(t, err)
	shadow, err := transport.Scope(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/impersonate", nil)).
		Create(1234, session.WithShadow())
	require.NoError(t, err)
	assert.True(t, shadow.Shadow)

	// Two sessions for the account: one primary, one shadow.
	assert.Len(t, store.sessions(1234), 2)

	// A later login replaces the primary but leaves the shadow alone.
	_, err = transport.Scope(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil)).Create(1234)
	require.NoError(t, err)
	assert.Len(t, store.sessions(1234), 2)

	got, err := store.GetByToken(context.Background(), shadow.Token)
	require.NoError(t, err)
	assert.True(t, got.Shadow)
}

func TestScope_NegativeTTLNeverResolves(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	_, err := transport.Scope(w, r).Create(1234, session.WithTTL(-time.Second))
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range w.Result().Cookies() {
		r2.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	got, err := transport.Scope(httptest.NewRecorder(), r2).Resolve()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScope_Destroy(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	_, err := transport.Scope(w, r).Create(1234)
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodPost, "/logout", nil)
	carryCookies(r2, w)
	w2 := httptest.NewRecorder()

	ok, err := transport.Scope(w2, r2).Destroy()
	require.NoError(t, err)
	assert.True(t, ok)

	// The response clears the cookie.
	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)

	// A second destroy with the same stale cookie finds nothing.
	r3 := httptest.NewRequest(http.MethodPost, "/logout", nil)
	carryCookies(r3, w)
	ok, err = transport.Scope(httptest.NewRecorder(), r3).Destroy()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScope_DataBag(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	scope := transport.Scope(w, r)

	_, err := scope.Create(1234)
	require.NoError(t, err)

	require.NoError(t, scope.SetData("name", "Joe"))
	require.NoError(t, scope.SetData("age", 30))

	assert.Equal(t, "Joe", scope.GetData("name"))
	assert.Nil(t, scope.GetData("missing"))

	// Values survive a round trip through storage on a fresh request.
	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	carryCookies(r2, w)
	scope2 := transport.Scope(httptest.NewRecorder(), r2)

	bag, err := scope2.Data()
	require.NoError(t, err)
	assert.Equal(t, "Joe", bag["name"])
	assert.EqualValues(t, 30, bag["age"])
}

func TestScope_ResetTTL(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	transport := newTransport(store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	created, err := transport.Scope(w, r).Create(1234)
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	r2.RemoteAddr = "198.51.100.9:4444"
	carryCookies(r2, w)
	w2 := httptest.NewRecorder()

	require.NoError(t, transport.Scope(w2, r2).ResetTTL())

	// Both the record and the re-issued cookie carry the extended expiry.
	got, err := store.GetByToken(context.Background(), created.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, 2*time.Second)
	assert.Equal(t, "198.51.100.9", got.IP)

	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.InDelta(t, time.Hour.Seconds(), float64(cookies[0].MaxAge), 2)
}

func TestCountSemantics(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	mgr := session.NewManager(store, session.Config{TTL: time.Hour, LiveTTL: 5 * time.Minute})
	ctx := context.Background()

	var sessions []*session.Session
	for id := int64(1); id <= 4; id++ {
		sess, err := mgr.StartNew(ctx, id)
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	all, err := mgr.Count(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 4, all)

	ok, err := mgr.Destroy(ctx, sessions[0])
	require.NoError(t, err)
	assert.True(t, ok)

	all, err = mgr.Count(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all)
}

func TestLiveCountSemantics(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	mgr := session.NewManager(store, session.Config{TTL: time.Hour, LiveTTL: 5 * time.Minute})
	ctx := context.Background()

	var sessions []*session.Session
	for id := int64(1); id <= 3; id++ {
		sess, err := mgr.StartNew(ctx, id)
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	// Every fresh session starts inside its live window.
	live, err := mgr.Count(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, live)

	// Two sessions go quiet: still stored and resolvable, no longer live.
	store.lapseLive(sessions[0].Token)
	store.lapseLive(sessions[1].Token)

	live, err = mgr.Count(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, live)

	all, err := mgr.Count(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all)

	// Resolving a quiet session refreshes its activity marker.
	got, err := mgr.Resolve(ctx, sessions[0].Token)
	require.NoError(t, err)
	assert.True(t, got.IsLive())

	live, err = mgr.Count(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, live)
}
