package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mardix/voodoo-doll-auth/core/cookie"
)

func TestManager_Set(t *testing.T) {
	t.Parallel()

	t.Run("writes defaults", func(t *testing.T) {
		t.Parallel()

		m := cookie.New()
		w := httptest.NewRecorder()

		require.NoError(t, m.Set(w, "sid", "tokenvalue"))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "sid", c.Name)
		assert.Equal(t, "tokenvalue", c.Value)
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.False(t, c.Secure)
	})

	t.Run("per-call options override defaults", func(t *testing.T) {
		t.Parallel()

		m := cookie.New(cookie.WithSecure(true), cookie.WithDomain("example.com"))
		w := httptest.NewRecorder()

		require.NoError(t, m.Set(w, "sid", "v", cookie.WithMaxAge(3600), cookie.WithPath("/app")))

		c := w.Result().Cookies()[0]
		assert.Equal(t, 3600, c.MaxAge)
		assert.Equal(t, "/app", c.Path)
		assert.Equal(t, "example.com", c.Domain)
		assert.True(t, c.Secure)
	})

	t.Run("rejects oversized cookies", func(t *testing.T) {
		t.Parallel()

		m := cookie.New()
		w := httptest.NewRecorder()

		err := m.Set(w, "big", strings.Repeat("x", cookie.MaxCookieSize))
		require.Error(t, err)

		var tooLarge cookie.ErrCookieTooLarge
		require.ErrorAs(t, err, &tooLarge)
		assert.Equal(t, "big", tooLarge.Name)
		assert.Empty(t, w.Result().Cookies())
	})
}

func TestManager_Get(t *testing.T) {
	t.Parallel()

	t.Run("returns the cookie value", func(t *testing.T) {
		t.Parallel()

		m := cookie.New()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "sid", Value: "tokenvalue"})

		got, err := m.Get(r, "sid")
		require.NoError(t, err)
		assert.Equal(t, "tokenvalue", got)
	})

	t.Run("missing cookie", func(t *testing.T) {
		t.Parallel()

		m := cookie.New()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := m.Get(r, "sid")
		assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
	})
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	m := cookie.New(cookie.WithSecure(true))
	w := httptest.NewRecorder()

	m.Delete(w, "sid")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.False(t, c.Expires.After(time.Unix(0, 0)))
	assert.True(t, c.Secure)
}
