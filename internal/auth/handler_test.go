package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/cargodesk-erp/cargodesk-erp/internal/auth"
	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
	_ "github.com/cargodesk-erp/cargodesk-erp/testing"
)

// commitWriter mirrors the application middleware chain: the session is
// committed before the first byte of the response so cookie headers land
// ahead of the status line.
type commitWriter struct {
	http.ResponseWriter
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	sess          *shared.Session
	headerWritten bool
	commitErr     error
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.commitErr = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// sessionRouter emulates the application middleware chain: load the
// session, expose it via context, commit before the response is written.
func sessionRouter(t *testing.T, manager *shared.SessionManager, handler *auth.Handler) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := manager.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			req = req.WithContext(ctx)
			cw := &commitWriter{ResponseWriter: w, manager: manager, ctx: ctx, req: req, sess: sess}
			next.ServeHTTP(cw, req)
			if !cw.headerWritten {
				cw.commitErr = manager.Commit(ctx, w, req, sess)
			}
			if cw.commitErr != nil {
				t.Fatalf("commit session: %v", cw.commitErr)
			}
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return r
}

func sessionCookie(t *testing.T, manager *shared.SessionManager, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range res.Result().Cookies() {
		if cookie.Name == manager.CookieName() && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestLoginSessionLogoutFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	f := newAuthFixture(t)
	router := sessionRouter(t, manager, auth.NewHandler(nil, f.service, manager))

	// Login.
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ana","password":"correct-horse"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)
	if loginRes.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", loginRes.Code, loginRes.Body.String())
	}

	var loginBody struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Role struct {
			Name string `json:"name"`
		} `json:"role"`
	}
	if err := json.Unmarshal(loginRes.Body.Bytes(), &loginBody); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if loginBody.User.Username != "ana" {
		t.Fatalf("login user = %q", loginBody.User.Username)
	}
	if loginBody.Role.Name != "Administrator" {
		t.Fatalf("login role = %q", loginBody.Role.Name)
	}
	cookie := sessionCookie(t, manager, loginRes)

	// Session restore with the cookie.
	sessReq := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sessReq.AddCookie(cookie)
	sessRes := httptest.NewRecorder()
	router.ServeHTTP(sessRes, sessReq)
	if sessRes.Code != http.StatusOK {
		t.Fatalf("session status = %d, body %s", sessRes.Code, sessRes.Body.String())
	}

	// Logout.
	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutRes := httptest.NewRecorder()
	router.ServeHTTP(logoutRes, logoutReq)
	if logoutRes.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", logoutRes.Code)
	}

	// The old cookie no longer restores a session.
	afterReq := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	afterReq.AddCookie(cookie)
	afterRes := httptest.NewRecorder()
	router.ServeHTTP(afterRes, afterReq)
	if afterRes.Code != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d", afterRes.Code)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	f := newAuthFixture(t)
	router := sessionRouter(t, manager, auth.NewHandler(nil, f.service, manager))

	for _, body := range []string{
		`{"username":"ana","password":"wrong"}`,
		`{"username":"ghost","password":"whatever"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", body, res.Code)
		}
	}
}

func TestCorruptSessionPayloadMeansLoggedOut(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	if err := mr.Set("session:broken", "{not-json"); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: "broken"})
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("corrupt payload surfaced as error: %v", err)
	}
	if sess.User() != "" {
		t.Fatalf("corrupt payload restored a user")
	}
}
