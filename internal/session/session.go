// Package session provides a string-keyed session bound to a browser cookie,
// persisted in a pluggable store.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Store persists session values keyed by session id
type Store interface {
	// Load returns the values for a session id, or an empty map when the
	// session is unknown.
	Load(ctx context.Context, sessionID string) (map[string]string, error)
	Save(ctx context.Context, sessionID string, values map[string]string) error
}

// Session is the request-scoped view of one browser session
type Session struct {
	ID       string
	store    Store
	values   map[string]string
	modified bool
}

// New creates a session handle over already-loaded values
func New(id string, store Store, values map[string]string) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{ID: id, store: store, values: values}
}

// Get returns the value stored under key
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key; the session is flushed at request end
func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.modified = true
}

// Delete removes a key from the session
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.modified = true
	}
}

// Flush persists the session if it was modified
func (s *Session) Flush(ctx context.Context) error {
	if !s.modified {
		return nil
	}
	if err := s.store.Save(ctx, s.ID, s.values); err != nil {
		return err
	}
	s.modified = false
	return nil
}

const contextKey = "session"

// Middleware binds a session to each request via the named cookie, creating
// the cookie when absent, and flushes modifications after the handler runs.
func Middleware(store Store, cookieName string, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var sessionID string
			if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
				sessionID = cookie.Value
			} else {
				sessionID = uuid.New().String()
				c.SetCookie(&http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(ttl),
				})
			}

			values, err := store.Load(ctx, sessionID)
			if err != nil {
				return err
			}

			sess := New(sessionID, store, values)
			c.Set(contextKey, sess)

			handlerErr := next(c)

			if err := sess.Flush(ctx); err != nil && handlerErr == nil {
				return err
			}
			return handlerErr
		}
	}
}

// FromEcho returns the session bound to the request, if any
func FromEcho(c echo.Context) (*Session, bool) {
	sess, ok := c.Get(contextKey).(*Session)
	return sess, ok
}
