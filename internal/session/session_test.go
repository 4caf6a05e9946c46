package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFlushOnlyWhenModified(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	sess := New("s1", st, nil)
	require.NoError(t, sess.Flush(ctx))

	loaded, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, loaded, "unmodified session must not be persisted")

	sess.Set("site_id", "7")
	require.NoError(t, sess.Flush(ctx))

	loaded, err = st.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "7", loaded["site_id"])
}

func TestSessionDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	sess := New("s1", st, map[string]string{"site_id": "7"})
	sess.Delete("site_id")
	require.NoError(t, sess.Flush(ctx))

	loaded, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	_, ok := loaded["site_id"]
	assert.False(t, ok)

	// Deleting an absent key does not mark the session modified.
	fresh := New("s2", st, nil)
	fresh.Delete("missing")
	require.NoError(t, fresh.Flush(ctx))
	loaded, err = st.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	values := map[string]string{"site_id": "7"}
	require.NoError(t, st.Save(ctx, "s1", values))

	// Mutating the caller's map must not leak into the store.
	values["site_id"] = "8"

	loaded, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "7", loaded["site_id"])

	// Nor must mutating a loaded map.
	loaded["site_id"] = "9"
	again, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "7", again["site_id"])
}

func TestMiddlewareCreatesCookieAndPersists(t *testing.T) {
	st := NewMemoryStore()
	e := echo.New()
	e.Use(Middleware(st, "sessionid", time.Hour))
	e.GET("/", func(c echo.Context) error {
		sess, ok := FromEcho(c)
		require.True(t, ok)
		sess.Set("site_id", "7")
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "sessionid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	loaded, err := st.Load(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "7", loaded["site_id"])
}

func TestMiddlewareReusesExistingSession(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.Save(context.Background(), "existing", map[string]string{"site_id": "7"}))

	e := echo.New()
	e.Use(Middleware(st, "sessionid", time.Hour))

	var got string
	e.GET("/", func(c echo.Context) error {
		sess, _ := FromEcho(c)
		got, _ = sess.Get("site_id")
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: "existing"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", got)
	assert.Empty(t, rec.Result().Cookies(), "existing cookie must not be reissued")
}
