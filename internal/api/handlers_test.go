package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safetylearn/safetylearn-web/internal/auth"
	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/models"
	"github.com/safetylearn/safetylearn-web/internal/services"
	"github.com/safetylearn/safetylearn-web/internal/stores"
	"github.com/safetylearn/safetylearn-web/internal/websocket"
)

type testServer struct {
	server *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHub()
	go hub.Run()

	achievementService := services.NewAchievementService(stores.NewAchievementStore(db), hub)
	require.NoError(t, achievementService.SeedDefaults(context.Background()))
	userService := services.NewUserService(stores.NewProfileStore(db), stores.NewProgressStore(db), achievementService, hub)

	provider := identity.NewLocalProvider(db, "test-secret", time.Hour, false)
	registry := auth.NewRegistry("cookie-secret", provider, userService)

	r := mux.NewRouter()
	r.Use(registry.Middleware)
	handler := NewHandler(registry, achievementService, nil, nil, hub)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	RegisterRoutes(apiRouter, handler)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		server: server,
		client: &http.Client{Jar: jar},
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&parsed)
	}
	return resp, parsed
}

func signUp(t *testing.T, ts *testServer) map[string]interface{} {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/signup", models.SignUpRequest{
		Email:    "zoe@example.com",
		Password: "hunter22",
		Name:     "Zoe",
		Age:      12,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	return user
}

func TestSignUpThenMe(t *testing.T) {
	ts := newTestServer(t)

	user := signUp(t, ts)
	assert.Equal(t, "zoe@example.com", user["email"])
	assert.Equal(t, "Zoe", user["name"])
	assert.Equal(t, "11-15", user["age_group"])

	resp, body := ts.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, user["id"], me["id"])
}

func TestMe_SignedOutIsNull(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["user"])
}

func TestSignUp_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/signup", models.SignUpRequest{
		Email: "zoe@example.com", Password: "hunter22", Age: 42,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "between 5 and 19")

	resp, body = ts.do(t, http.MethodPost, "/api/v1/auth/signup", models.SignUpRequest{
		Email: "zoe@example.com", Password: "abc", Age: 12,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "at least 6 characters")
}

func TestSignIn_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/signin", models.SignInRequest{
		Email: "zoe@example.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password. Please check your credentials and try again.", body["error"])
}

func TestSignOutThenMe(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/auth/signout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["user"])
}

func TestCompleteLessonFlow(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/lessons/bullying/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	progress, ok := user["progress"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), progress["total_lessons_completed"])
	assert.Equal(t, float64(100), progress["total_points"])
	assert.Equal(t, float64(1), progress["current_level"])

	achievements, ok := user["achievements"].([]interface{})
	require.True(t, ok)
	require.Len(t, achievements, 1)
	first := achievements[0].(map[string]interface{})
	assert.Equal(t, "first-lesson", first["id"])

	// Completing the same lesson again changes nothing.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/lessons/bullying/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user = body["user"].(map[string]interface{})
	progress = user["progress"].(map[string]interface{})
	assert.Equal(t, float64(1), progress["total_lessons_completed"])
	assert.Equal(t, float64(100), progress["total_points"])
}

func TestCompleteLesson_UnknownLesson(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/lessons/advanced-tax-law/complete", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteLesson_RequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/lessons/bullying/complete", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts)

	resp, body := ts.do(t, http.MethodPut, "/api/v1/profile", map[string]interface{}{
		"name": "Zoey",
		"age":  16,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Zoey", user["name"])
	assert.Equal(t, float64(16), user["age"])
}

func TestListLessons_ScopedToUserBucket(t *testing.T) {
	ts := newTestServer(t)
	signUp(t, ts) // age 12, bucket 11-15

	resp, body := ts.do(t, http.MethodGet, "/api/v1/lessons", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := body["lessons"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 4)
	for _, item := range list {
		lesson := item.(map[string]interface{})
		assert.Equal(t, "11-15", lesson["age_group"])
	}
}

func TestListLessons_AnonymousSeesAll(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/lessons", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := body["lessons"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 12)
}

func TestListAchievements(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/achievements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := body["achievements"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 4)
}
