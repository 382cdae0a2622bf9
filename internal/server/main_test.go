package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/storage"
	"inkwell/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "inkwell_session"

type testApp struct {
	t     *testing.T
	srv   *Server
	app   *fiber.App
	cfg   *config.Config
	store *storage.LocalStore
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Env:                "test",
		Port:               "0",
		SecretKey:          "test-secret-key-that-is-long-enough-1234",
		SessionTTLMinutes:  60,
		SessionCookieName:  testCookie,
		PasswordHashScheme: "pbkdf2",
		PBKDF2Iterations:   1000,
		DBDriver:           "sqlite",
		BlobBackend:        "local",
		UploadDir:          dir,
		UploadMaxSizeMB:    1,
	}
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()
	cache.SetClient(nil)

	dir := t.TempDir()
	cfg := testConfig(dir)
	for _, m := range mutate {
		m(cfg)
	}

	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	srv, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), nil, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.feedHub.Shutdown(context.Background()) })

	return &testApp{t: t, srv: srv, app: srv.App(), cfg: cfg, store: store}
}

func (ta *testApp) do(req *http.Request, cookies ...*http.Cookie) *http.Response {
	ta.t.Helper()
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(ta.t, err)
	return resp
}

func (ta *testApp) get(target string, cookies ...*http.Cookie) *http.Response {
	return ta.do(httptest.NewRequest(http.MethodGet, target, nil), cookies...)
}

func (ta *testApp) getJSON(target string, cookies ...*http.Cookie) *http.Response {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	return ta.do(req, cookies...)
}

func (ta *testApp) postForm(target string, values url.Values, cookies ...*http.Cookie) *http.Response {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return ta.do(req, cookies...)
}

func (ta *testApp) postJSON(target string, payload any, cookies ...*http.Cookie) *http.Response {
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(ta.t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	return ta.do(req, cookies...)
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, file *upload) *http.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (ta *testApp) register(username, password string) {
	ta.t.Helper()
	resp := ta.postForm("/signin", url.Values{"username": {username}, "password": {password}})
	require.Equal(ta.t, http.StatusFound, resp.StatusCode)
}

func (ta *testApp) login(username, password string) *http.Cookie {
	ta.t.Helper()
	resp := ta.postForm("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(ta.t, http.StatusFound, resp.StatusCode)
	c := cookieNamed(resp, testCookie)
	require.NotNil(ta.t, c, "login must set the session cookie")
	return c
}

func (ta *testApp) user(name string) *http.Cookie {
	ta.t.Helper()
	ta.register(name, "pw-"+name)
	return ta.login(name, "pw-"+name)
}

func (ta *testApp) createPost(session *http.Cookie, title, content string, file *upload) *models.Post {
	ta.t.Helper()
	req := multipartRequest(ta.t, "/addpost", map[string]string{"title": title, "content": content}, file)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp := ta.do(req, session)
	body := readBody(ta.t, resp)
	require.Equal(ta.t, http.StatusCreated, resp.StatusCode, body)

	var post models.Post
	require.NoError(ta.t, json.Unmarshal([]byte(body), &post))
	return &post
}

func (ta *testApp) listPosts(cookies ...*http.Cookie) []models.Post {
	ta.t.Helper()
	resp := ta.getJSON("/", cookies...)
	require.Equal(ta.t, http.StatusOK, resp.StatusCode)
	var out struct {
		Name  string        `json:"name"`
		Posts []models.Post `json:"posts"`
	}
	decode(ta.t, resp, &out)
	return out.Posts
}

// cookieNamed returns the last Set-Cookie for name with a non-empty value.
func cookieNamed(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value != "" {
			found = c
		}
	}
	return found
}

func cookieCleared(resp *http.Response, name string) bool {
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value == "" {
			return true
		}
	}
	return false
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func assertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	var body models.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, code, body.Code)
}
