package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.DBPath = ":memory:"
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret-at-least-16-chars!!"
	}
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

// register signs a new user up and returns a client carrying their token.
func register(t *testing.T, h http.Handler, name string) (*client, string) {
	t.Helper()
	c := &client{t: t, h: h}
	rec := c.do(http.MethodPost, "/api/auth/register",
		`{"name":"`+name+`","email":"`+name+`@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}
	decode(t, rec, &res)
	c.token = res.Token
	return c, res.User.ID
}

func TestNew_RejectsShortSecret(t *testing.T) {
	_, err := New(Config{DBPath: ":memory:", JWTSecret: "short"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Config{})
	c := &client{t: t, h: s.Handler()}

	rec := c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `formbuilder_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, "formbuilder_db_connection_pool")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()
	anon := &client{t: t, h: h}

	rec := anon.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ann, _ := register(t, h, "ann")
	rec = ann.do(http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct{ Email string }
	decode(t, rec, &me)
	assert.Equal(t, "ann@example.com", me.Email)

	rec = anon.do(http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = anon.do(http.MethodPost, "/api/auth/register", `{"name":"x","email":"ann@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ann.do(http.MethodPatch, "/api/me/preferences", `{"theme":"dark"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ann.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = anon.do(http.MethodGet, "/api/auth/github/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "GitHub sign-in is off without credentials")
}

func TestBlockedTokenIsForbidden(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	_, adminID := register(t, h, "boss")
	victim, victimID := register(t, h, "victim")

	// No API promotes the first admin; do it in storage.
	ctx := t.Context()
	boss, err := s.db.GetUserByID(ctx, adminID)
	require.NoError(t, err)
	boss.IsAdmin = true
	require.NoError(t, s.db.UpdateUser(ctx, boss))

	admin := &client{t: t, h: h}
	rec := admin.do(http.MethodPost, "/api/auth/login", `{"email":"boss@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct{ Token string }
	decode(t, rec, &res)
	admin.token = res.Token

	rec = admin.do(http.MethodPatch, "/api/users/"+victimID+"/status", `{"status":"blocked"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = victim.do(http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()
	creator, _ := register(t, h, "creator")
	resp, _ := register(t, h, "resp")
	anon := &client{t: t, h: h}

	rec := anon.do(http.MethodPost, "/api/templates", `{"title":"T","topic":"Quiz"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = creator.do(http.MethodPost, "/api/templates", `{
		"title": "Quiz night",
		"topic": "Quiz",
		"isPublic": true,
		"tags": ["trivia"],
		"fields": [
			{"type": "positive_integer", "title": "Score", "required": true},
			{"type": "checkbox", "title": "Again?"}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl struct {
		ID        string
		Questions []struct {
			ID    string
			Fixed bool
		}
	}
	decode(t, rec, &tmpl)
	require.Len(t, tmpl.Questions, 4)
	score, again := tmpl.Questions[2].ID, tmpl.Questions[3].ID

	rec = anon.do(http.MethodGet, "/api/templates?tag=trivia", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct{ ID string }
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = resp.do(http.MethodPost, "/api/templates/"+tmpl.ID+"/forms",
		`{"answers":[{"questionId":"`+score+`","value":7},{"questionId":"`+again+`","value":true}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var form struct{ ID string }
	decode(t, rec, &form)

	rec = resp.do(http.MethodGet, "/api/forms/mine", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = resp.do(http.MethodGet, "/api/templates/"+tmpl.ID+"/aggregate", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = creator.do(http.MethodGet, "/api/templates/"+tmpl.ID+"/aggregate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		FormCount int
		Numeric   []struct{ Average float64 }
		Checkbox  []struct{ True int }
	}
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.FormCount)
	require.Len(t, summary.Numeric, 1)
	assert.Equal(t, 7.0, summary.Numeric[0].Average)
	require.Len(t, summary.Checkbox, 1)
	assert.Equal(t, 1, summary.Checkbox[0].True)

	rec = creator.do(http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []struct{ Message string }
	decode(t, rec, &notes)
	require.Len(t, notes, 1)

	rec = resp.do(http.MethodPost, "/api/templates/"+tmpl.ID+"/like", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = resp.do(http.MethodPost, "/api/templates/"+tmpl.ID+"/like", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = resp.do(http.MethodPost, "/api/templates/"+tmpl.ID+"/comments", `{"content":"fun"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = creator.do(http.MethodDelete, "/api/templates/"+tmpl.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = resp.do(http.MethodGet, "/api/forms/"+form.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	s := newTestServer(t, Config{StaticDir: dir})
	c := &client{t: t, h: s.Handler()}

	rec := c.do(http.MethodGet, "/templates/abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app</html>")

	rec = c.do(http.MethodGet, "/app.js", "")
	assert.Contains(t, rec.Body.String(), "console.log")

	rec = c.do(http.MethodGet, "/api/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
