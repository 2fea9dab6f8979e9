package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/logging"
	"github.com/san-kum/mlplay/internal/playground"
)

func newTestServer(t *testing.T, maxSessions int) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(ctx, experiment.NewRegistry(), "127.0.0.1:0", maxSessions, logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Sessions().CloseAll()
		cancel()
	})
	return srv, ts
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func create(t *testing.T, ts *httptest.Server, req CreateRequest) string {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[map[string]string](t, resp)["id"]
	require.NotEmpty(t, id)
	return id
}

func TestListSimulators(t *testing.T) {
	_, ts := newTestServer(t, 0)
	resp := do(t, http.MethodGet, ts.URL+"/api/simulators", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sims := decode[[]simulatorView](t, resp)
	require.Len(t, sims, 11)
	assert.Equal(t, "gradient_descent", sims[0].Name)
	assert.NotEmpty(t, sims[0].Params)
	assert.Equal(t, 50, sims[0].MaxTicks)
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t, 0)
	id := create(t, ts, CreateRequest{Simulator: "gradient_descent", Seed: 1, IntervalMS: 5})
	base := ts.URL + "/api/sessions/" + id

	status := decode[statusView](t, do(t, http.MethodGet, base, nil))
	assert.Equal(t, "idle", status.Status)
	assert.Equal(t, 0, status.Tick)

	resp := do(t, http.MethodPost, base+"/step", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status = decode[statusView](t, resp)
	assert.Equal(t, 1, status.Tick)
	assert.InDelta(t, 2.4, status.Values["x"], 1e-9)

	resp = do(t, http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		s := decode[statusView](t, do(t, http.MethodGet, base, nil))
		return s.Tick == 50 && s.Status == "idle"
	}, 5*time.Second, 20*time.Millisecond)

	resp = do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "an exhausted run needs a reset")

	resp = do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[statusView](t, resp).Tick)

	records := decode[[]playground.Record](t, do(t, http.MethodGet, base+"/trajectory", nil))
	assert.Empty(t, records)

	resp = do(t, http.MethodPost, base+"/explode", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParamsAndFrame(t *testing.T) {
	_, ts := newTestServer(t, 0)
	id := create(t, ts, CreateRequest{Simulator: "kmeans"})
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodPut, base+"/params", map[string]float64{"k": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6.0, decode[statusView](t, resp).Params["k"])

	resp = do(t, http.MethodPut, base+"/params", map[string]float64{"learning_rate": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	do(t, http.MethodPost, base+"/step", nil)
	resp = do(t, http.MethodGet, base+"/frame.svg?overlay=voronoi&overlay=paths", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "<svg"))
	assert.NotContains(t, string(body), "NaN")

	records := decode[[]playground.Record](t, do(t, http.MethodGet, base+"/trajectory", nil))
	assert.Len(t, records, 1)
}

func TestCreateErrors(t *testing.T) {
	_, ts := newTestServer(t, 1)

	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", CreateRequest{Simulator: "perceptron"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/api/sessions", CreateRequest{Simulator: "svm", Params: map[string]float64{"bogus": 1}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	create(t, ts, CreateRequest{Simulator: "svm"})
	resp = do(t, http.MethodPost, ts.URL+"/api/sessions", CreateRequest{Simulator: "svm"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDeleteStopsTicking(t *testing.T) {
	srv, ts := newTestServer(t, 0)
	id := create(t, ts, CreateRequest{Simulator: "svm", IntervalMS: 2, MaxTicks: 100000})
	base := ts.URL + "/api/sessions/" + id

	m, err := srv.Sessions().Get(id)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/start", nil).StatusCode)
	require.Eventually(t, func() bool { return m.Session.Ticks() > 3 }, 2*time.Second, 5*time.Millisecond)

	resp := do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ticks := m.Session.Ticks()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, m.Session.Ticks())

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, base, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, base, nil).StatusCode)
}

func TestStream(t *testing.T) {
	_, ts := newTestServer(t, 0)
	id := create(t, ts, CreateRequest{Simulator: "regression"})
	base := ts.URL + "/api/sessions/" + id

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/stream?overlay=truth"
	conn, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	defer conn.Close()

	var ev Event
	require.NoError(t, websocket.JSON.Receive(conn, &ev))
	assert.Equal(t, 0, ev.Tick)
	assert.Contains(t, ev.SVG, "<svg")

	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/step", nil).StatusCode)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &ev))
	assert.Equal(t, 1, ev.Tick)
	assert.Contains(t, ev.Values, "loss")
	assert.Contains(t, ev.SVG, `class="truth"`)
}

func TestConcurrentCreatesRespectLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := NewSessions(ctx, experiment.NewRegistry(), 3)
	defer sessions.CloseAll()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.Create(CreateRequest{Simulator: "activation", Seed: 1})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrTooManySessions)
				rejected++
				return
			}
			created++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, created)
	assert.Equal(t, 29, rejected)
	assert.Equal(t, 3, sessions.Len())
}
