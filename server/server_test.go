package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-service/internal/config"
	"github.com/jrsteele09/go-session-service/sessions"
	"github.com/jrsteele09/go-session-service/sessions/repofakes"
	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/users"
	"github.com/jrsteele09/go-session-service/users/repofake"
)

type fixture struct {
	server   *httptest.Server
	repo     *repofakes.FakeSessionRepo
	userRepo *repofake.FakeUserRepo
	codec    *token.Codec
	user     users.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := token.NewCodec([]byte("test-secret"), "go-session-service", nil)
	require.NoError(t, err)

	repo := repofakes.NewFakeSessionRepo()
	service, err := sessions.NewService(repo, zerolog.Nop())
	require.NoError(t, err)

	userRepo := repofake.NewFakeUserRepo()
	user := users.User{ID: uuid.New(), Username: "ana", Email: "ana@example.com"}
	userRepo.Add(user)

	srv, err := New(config.New(), service, userRepo, codec, nil, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &fixture{server: ts, repo: repo, userRepo: userRepo, codec: codec, user: user}
}

func (f *fixture) login(t *testing.T) loginResponse {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: f.user.Username})
	resp, err := http.Post(f.server.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var lr loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lr))
	return lr
}

func doRequest(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLoginMintsTokenAndSession(t *testing.T) {
	f := newFixture(t)

	lr := f.login(t)
	assert.NotEmpty(t, lr.Token)
	require.NotNil(t, lr.Session)
	assert.Equal(t, f.user.ID, lr.Session.UserID)
	assert.True(t, lr.Session.IsValid)
	assert.Equal(t, token.ProviderLocal, lr.Session.Provider)

	decoded, err := f.codec.Decode(lr.Token)
	require.NoError(t, err)
	assert.Equal(t, lr.Session.ID, decoded.ID)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(loginRequest{Username: "nobody"})
	resp, err := http.Post(f.server.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidateAcceptsLiveSession(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/api/sessions/validate", nil,
		map[string]string{"Authorization": "Bearer " + lr.Token})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidateRejectsInvalidatedSession(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)

	url := fmt.Sprintf("%s/api/users/%s/sessions/%s", f.server.URL, f.user.ID, lr.Session.ID)
	resp := doRequest(t, http.MethodDelete, url, nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, f.server.URL+"/api/sessions/validate", nil,
		map[string]string{"Authorization": "Bearer " + lr.Token})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	f := newFixture(t)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/api/sessions/validate", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, f.server.URL+"/api/sessions/validate", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)

	url := fmt.Sprintf("%s/api/users/%s/sessions", f.server.URL, f.user.ID)
	resp := doRequest(t, http.MethodGet, url, nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found []sessions.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	require.Len(t, found, 1)
	assert.Equal(t, lr.Session.ID, found[0].ID)
}

func TestInvalidateAllReturnsIDs(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)

	url := fmt.Sprintf("%s/api/users/%s/sessions", f.server.URL, f.user.ID)
	resp := doRequest(t, http.MethodDelete, url, nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Invalidated []string `json:"invalidated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{lr.Session.ID}, body.Invalidated)
}

func TestInvalidateFaultReturnsBadGateway(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)
	f.repo.SetInvalidateErr(fmt.Errorf("backend down"))

	url := fmt.Sprintf("%s/api/users/%s/sessions/%s", f.server.URL, f.user.ID, lr.Session.ID)
	resp := doRequest(t, http.MethodDelete, url, nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	lr := f.login(t)

	invalidateURL := fmt.Sprintf("%s/api/users/%s/sessions/%s", f.server.URL, f.user.ID, lr.Session.ID)
	resp := doRequest(t, http.MethodDelete, invalidateURL, nil, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := json.Marshal(purgeRequest{UserIDs: []string{f.user.ID.String()}, OnlyInvalid: true})
	resp = doRequest(t, http.MethodPost, f.server.URL+"/api/sessions/purge", body,
		map[string]string{"Content-Type": "application/json"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := f.repo.Stored(f.user.ID.String(), lr.Session.ID)
	assert.False(t, ok, "invalidated session should have been purged")
}

func TestPurgeRequiresUserIDs(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(purgeRequest{})
	resp := doRequest(t, http.MethodPost, f.server.URL+"/api/sessions/purge", body,
		map[string]string{"Content-Type": "application/json"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.repo.ConnectionDown = true
	resp, err = http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOAuthLoginUnknownProvider(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/oauth/myspace/login")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)

	past := time.Now().Add(-2 * time.Hour)
	codec, err := token.NewCodec([]byte("test-secret"), "go-session-service", nil,
		token.WithNowTime(func() time.Time { return past }))
	require.NoError(t, err)

	tok := codec.CreateForUser(&f.user, time.Hour, token.ProviderLocal)
	sess, err := sessions.FromToken(tok, sessions.BearerToken)
	require.NoError(t, err)
	_, err = f.repo.Create(context.Background(), sess)
	require.NoError(t, err)

	signed, err := codec.Encode(tok)
	require.NoError(t, err)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/api/sessions/validate", nil,
		map[string]string{"Authorization": "Bearer " + signed})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
