package composer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const sessionName = "editor_session"

// registerAuthRoutes wires the optional write guard onto one host's router.
// With no editor password configured the guard stays disabled and no
// session machinery is mounted.
func (a *App) registerAuthRoutes(e *echo.Echo) {
	if a.Config.EditorPassword == "" {
		return
	}
	e.Use(session.Middleware(a.newSessionStore()))
	e.POST("/_auth/login", a.handleLogin)
	e.POST("/_auth/logout", handleLogout)
}

// requireEditor guards write operations. Disabled when no editor password
// is configured.
func (a *App) requireEditor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a.Config.EditorPassword == "" {
			return next(c)
		}
		if !isEditor(c) {
			return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized", Code: http.StatusUnauthorized})
		}
		return next(c)
	}
}

func (a *App) handleLogin(c echo.Context) error {
	if !a.limiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if c.FormValue("password") != a.Config.EditorPassword {
		return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized", Code: http.StatusUnauthorized})
	}
	if err := setEditorSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func handleLogout(c echo.Context) error {
	if err := clearEditorSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func isEditor(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setEditorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearEditorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// loginLimiter rate-limits login attempts per IP address.
type loginLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
}

func newLoginLimiter(max int, window time.Duration) *loginLimiter {
	return &loginLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
	}
}

// Allow returns true if the IP has not exceeded the rate limit within the
// window, recording the attempt. Stale entries are pruned on access.
func (l *loginLimiter) Allow(ip string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.attempts[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.attempts[ip] = kept
		return false
	}
	kept = append(kept, now)
	l.attempts[ip] = kept
	return true
}
