package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"gigflow/application"
	"gigflow/infrastructure"
)

const testSecret = "test-secret"

type apiFixture struct {
	router *gin.Engine
	hub    *infrastructure.Hub
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t).Sugar()

	store := infrastructure.NewMemoryStore()
	// Hub goroutines can outlive the test; keep them off the test logger.
	hub := infrastructure.NewHub(zap.NewNop().Sugar())
	notifier := infrastructure.NewAsyncNotifier(hub, log, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		notifier.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	router := gin.New()
	NewHTTPHandler(router, Dependencies{
		Jobs:    application.NewJobRegistry(store, log),
		Bids:    application.NewBidLedger(store, notifier, log),
		Hiring:  application.NewHiringCoordinator(store, notifier, log),
		Hub:     hub,
		Auth:    NewAuthenticator(testSecret),
		Log:     log,
		Timeout: time.Second,
	})
	return &apiFixture{router: router, hub: hub}
}

func token(t *testing.T, secret, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

func (a *apiFixture) do(t *testing.T, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, testSecret, user))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

type jobView struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"ownerId"`
	Title   string  `json:"title"`
	Budget  float64 `json:"budget"`
	Status  string  `json:"status"`
}

type bidView struct {
	ID       string  `json:"id"`
	JobID    string  `json:"jobId"`
	BidderID string  `json:"bidderId"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
}

func (a *apiFixture) createJob(t *testing.T, owner, title string) jobView {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/jobs", owner, map[string]interface{}{
		"title": title, "description": "details", "budget": 500,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var job jobView
	decodeData(t, env, &job)
	return job
}

func (a *apiFixture) submitBid(t *testing.T, bidder, jobID string, price float64) bidView {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/bids", bidder, map[string]interface{}{
		"jobId": jobID, "message": "pick me", "price": price,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var bid bidView
	decodeData(t, env, &bid)
	return bid
}

func TestAuthRequired(t *testing.T) {
	api := newAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/jobs", "", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing credentials", env.Error)

	req := httptest.NewRequest(http.MethodGet, "/api/bids/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "other-secret", "alice"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/bids/mine", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, testSecret, "alice")})
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicJobRoutes(t *testing.T) {
	api := newAPI(t)
	job := api.createJob(t, "owner", "Website redesign")
	api.createJob(t, "owner", "Copywriting")

	code, env := api.do(t, http.MethodGet, "/api/jobs?search=WEBSITE", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)

	code, env = api.do(t, http.MethodGet, "/api/jobs/"+job.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var got jobView
	decodeData(t, env, &got)
	assert.Equal(t, "Website redesign", got.Title)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, "owner", got.OwnerID)

	code, _ = api.do(t, http.MethodGet, "/api/jobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestJobValidationAndOwnership(t *testing.T) {
	api := newAPI(t)

	code, _ := api.do(t, http.MethodPost, "/api/jobs", "owner", map[string]interface{}{
		"title": "x", "description": "d",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := api.do(t, http.MethodPost, "/api/jobs", "owner", map[string]interface{}{
		"title": strings.Repeat("t", 101), "description": "d", "budget": 1,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "title cannot exceed 100 characters")

	job := api.createJob(t, "owner", "Logo")

	code, _ = api.do(t, http.MethodPut, "/api/jobs/"+job.ID, "mallory", map[string]interface{}{"title": "mine now"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = api.do(t, http.MethodPut, "/api/jobs/"+job.ID, "owner", map[string]interface{}{"budget": 650})
	require.Equal(t, http.StatusOK, code)
	var updated jobView
	decodeData(t, env, &updated)
	assert.Equal(t, 650.0, updated.Budget)
	assert.Equal(t, "Logo", updated.Title)

	code, env = api.do(t, http.MethodGet, "/api/jobs/mine", "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)

	code, _ = api.do(t, http.MethodDelete, "/api/jobs/"+job.ID, "owner", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodGet, "/api/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBidAndHireFlow(t *testing.T) {
	api := newAPI(t)
	job := api.createJob(t, "owner", "Mobile app")

	code, _ := api.do(t, http.MethodPost, "/api/bids", "owner", map[string]interface{}{
		"jobId": job.ID, "message": "self", "price": 1,
	})
	assert.Equal(t, http.StatusForbidden, code)

	a := api.submitBid(t, "alice", job.ID, 400)
	b := api.submitBid(t, "bob", job.ID, 350)

	code, _ = api.do(t, http.MethodPost, "/api/bids", "alice", map[string]interface{}{
		"jobId": job.ID, "message": "again", "price": 390,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(t, http.MethodGet, "/api/bids/job/"+job.ID, "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := api.do(t, http.MethodGet, "/api/bids/job/"+job.ID, "owner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Count)

	code, _ = api.do(t, http.MethodPatch, "/api/bids/"+a.ID+"/hire", "bob", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = api.do(t, http.MethodPatch, "/api/bids/"+a.ID+"/hire", "owner", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var result application.HireResult
	decodeData(t, env, &result)
	assert.Equal(t, a.ID, result.BidID)
	assert.Equal(t, "alice", result.BidderID)
	assert.Equal(t, int64(1), result.RejectedBids)

	code, _ = api.do(t, http.MethodPut, "/api/bids/"+b.ID+"/hire", "owner", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(t, http.MethodGet, "/api/bids/mine", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var mine []bidView
	decodeData(t, env, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "rejected", mine[0].Status)

	code, _ = api.do(t, http.MethodDelete, "/api/bids/"+b.ID, "bob", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.do(t, http.MethodPut, "/api/bids/"+a.ID, "alice", map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(t, http.MethodGet, "/api/jobs/"+job.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var got jobView
	decodeData(t, env, &got)
	assert.Equal(t, "assigned", got.Status)
}

func TestBidEditAndWithdraw(t *testing.T) {
	api := newAPI(t)
	job := api.createJob(t, "owner", "Logo")
	bid := api.submitBid(t, "alice", job.ID, 80)

	code, _ := api.do(t, http.MethodPut, "/api/bids/"+bid.ID, "bob", map[string]interface{}{"price": 70})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := api.do(t, http.MethodPut, "/api/bids/"+bid.ID, "alice", map[string]interface{}{"price": 70})
	require.Equal(t, http.StatusOK, code)
	var updated bidView
	decodeData(t, env, &updated)
	assert.Equal(t, 70.0, updated.Price)

	code, env = api.do(t, http.MethodDelete, "/api/bids/"+bid.ID, "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bid withdrawn", env.Message)

	code, _ = api.do(t, http.MethodDelete, "/api/bids/"+bid.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHiredNotificationReachesWebsocket(t *testing.T) {
	api := newAPI(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	job := api.createJob(t, "owner", "Mobile app")
	bid := api.submitBid(t, "alice", job.ID, 400)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, testSecret, "alice")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return api.hub.Connected("alice") == 1 }, time.Second, 5*time.Millisecond)

	code, env := api.do(t, http.MethodPatch, "/api/bids/"+bid.ID+"/hire", "owner", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type        string `json:"type"`
		RecipientID string `json:"recipientId"`
		Data        struct {
			JobID   string `json:"jobId"`
			Message string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "HIRED_NOTIFICATION", msg.Type)
	assert.Equal(t, "alice", msg.RecipientID)
	assert.Equal(t, job.ID, msg.Data.JobID)
	assert.Equal(t, `You have been hired for "Mobile app"!`, msg.Data.Message)
}
