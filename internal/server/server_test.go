package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/pkg/jsonutil"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	store, err := database.NewDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := DefaultConfig()
	cfg.HistoryLimit = 2
	if mutate != nil {
		mutate(&cfg)
	}
	srv := New(cfg, store, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.broker.Close()
		ts.Close()
	})
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seedStage(t *testing.T, base, name string, freight ...string) {
	t.Helper()
	stage := api.Stage{}
	for i, id := range freight {
		f := api.Freight{ID: id, Charts: []api.Chart{{RegistryURL: "oci://charts", Name: "app", Version: "1.0." + id}}}
		if i == 0 {
			stage.Status.CurrentFreight = &f
			continue
		}
		// Extra freight is stored only, not attached to the stage.
		code := doJSON(t, http.MethodPut, base+"/v1/projects/demo/freight/"+id, f, nil)
		require.Equal(t, http.StatusOK, code)
	}
	code := doJSON(t, http.MethodPut, base+"/v1/projects/demo/stages/"+name, stage, nil)
	require.Equal(t, http.StatusOK, code)
}

type watchConn struct {
	resp   *http.Response
	reader *jsonutil.LineReader
}

func openWatch(t *testing.T, base, stage string) *watchConn {
	t.Helper()
	resp, err := http.Get(base + "/v1/projects/demo/stages/" + stage + "/promotions/watch")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, jsonutil.ContentTypeNDJSON, resp.Header.Get("Content-Type"))
	t.Cleanup(func() { resp.Body.Close() })
	return &watchConn{resp: resp, reader: jsonutil.NewLineReader(resp.Body)}
}

func (w *watchConn) next(t *testing.T) api.PromotionEvent {
	t.Helper()
	type result struct {
		ev  api.PromotionEvent
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var ev api.PromotionEvent
		err := w.reader.Next(&ev)
		ch <- result{ev, err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return api.PromotionEvent{}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var health map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "freightview_watchers 0")
	assert.Contains(t, string(body), "# TYPE freightview_events_published_total counter")
}

func TestPutStageStoresEmbeddedFreight(t *testing.T) {
	_, ts := newTestServer(t, nil)
	seedStage(t, ts.URL, "dev", "f1")

	var list api.ListStagesResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil, &list))
	require.Len(t, list.Stages, 1)

	st := list.Stages[0]
	assert.Equal(t, "dev", st.Metadata.Name)
	assert.Equal(t, "demo", st.Metadata.Namespace)
	assert.NotEmpty(t, st.Metadata.UID)
	require.NotNil(t, st.Status.CurrentFreight)
	assert.Equal(t, "f1", st.Status.CurrentFreight.ID)

	// The embedded freight can now be promoted.
	var p api.Promotion
	code := doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/dev/promotions", api.CreatePromotionRequest{Freight: "f1"}, &p)
	assert.Equal(t, http.StatusCreated, code)
}

func TestWatchReceivesEveryMutation(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	seedStage(t, ts.URL, "dev", "f1")
	w := openWatch(t, ts.URL, "dev")
	require.Equal(t, 1, srv.broker.Count())

	var created api.Promotion
	code := doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/dev/promotions",
		api.CreatePromotionRequest{Name: "p1", Freight: "f1"}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, api.PhasePending, created.Status.Phase)

	ev := w.next(t)
	assert.Equal(t, api.EventAdded, ev.Type)
	assert.Equal(t, "p1", ev.Promotion.Metadata.Name)

	code = doJSON(t, http.MethodPut, ts.URL+"/v1/projects/demo/promotions/p1/status",
		api.PromotionStatus{Phase: api.PhaseRunning}, nil)
	require.Equal(t, http.StatusOK, code)
	ev = w.next(t)
	assert.Equal(t, api.EventModified, ev.Type)
	assert.Equal(t, api.PhaseRunning, ev.Promotion.Status.Phase)

	code = doJSON(t, http.MethodDelete, ts.URL+"/v1/projects/demo/promotions/p1", nil, nil)
	require.Equal(t, http.StatusOK, code)
	ev = w.next(t)
	assert.Equal(t, api.EventDeleted, ev.Type)
	assert.Equal(t, created.Metadata.UID, ev.Promotion.Metadata.UID)

	assert.Equal(t, int64(3), srv.Metrics().EventsPublished)
}

func TestWatchIsScopedToStage(t *testing.T) {
	_, ts := newTestServer(t, nil)
	seedStage(t, ts.URL, "dev", "f1")
	seedStage(t, ts.URL, "prod", "f1")
	w := openWatch(t, ts.URL, "prod")

	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/dev/promotions",
		api.CreatePromotionRequest{Name: "dev-1", Freight: "f1"}, nil))
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/prod/promotions",
		api.CreatePromotionRequest{Name: "prod-1", Freight: "f1"}, nil))

	ev := w.next(t)
	assert.Equal(t, "prod-1", ev.Promotion.Metadata.Name)
}

func TestSucceededPromotesFreightIntoStage(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.HistoryLimit = 2 })
	seedStage(t, ts.URL, "dev", "f1", "f2", "f3", "f4")

	for i, id := range []string{"f2", "f3", "f4"} {
		name := "p" + id
		require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/dev/promotions",
			api.CreatePromotionRequest{Name: name, Freight: id}, nil), "create %d", i)
		require.Equal(t, http.StatusOK, doJSON(t, http.MethodPut, ts.URL+"/v1/projects/demo/promotions/"+name+"/status",
			api.PromotionStatus{Phase: api.PhaseSucceeded}, nil))
	}

	var list api.ListStagesResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil, &list))
	require.Len(t, list.Stages, 1)
	st := list.Stages[0].Status
	require.NotNil(t, st.CurrentFreight)
	assert.Equal(t, "f4", st.CurrentFreight.ID)
	require.Len(t, st.History, 2)
	assert.Equal(t, "f3", st.History[0].ID)
	assert.Equal(t, "f2", st.History[1].ID)

	// A repeated Succeeded does not promote again.
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPut, ts.URL+"/v1/projects/demo/promotions/pf4/status",
		api.PromotionStatus{Phase: api.PhaseSucceeded}, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil, &list))
	assert.Equal(t, "f3", list.Stages[0].Status.History[0].ID)
}

func TestConcurrentSucceededPromotesOnce(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.HistoryLimit = 5 })
	seedStage(t, ts.URL, "dev", "f1", "f2")
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/v1/projects/demo/stages/dev/promotions",
		api.CreatePromotionRequest{Name: "p1", Freight: "f2"}, nil))

	body, err := json.Marshal(api.PromotionStatus{Phase: api.PhaseSucceeded})
	require.NoError(t, err)

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/projects/demo/promotions/p1/status", bytes.NewReader(body))
			if err != nil {
				codes <- 0
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	var list api.ListStagesResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil, &list))
	st := list.Stages[0].Status
	require.NotNil(t, st.CurrentFreight)
	assert.Equal(t, "f2", st.CurrentFreight.ID)
	require.Len(t, st.History, 1)
	assert.Equal(t, "f1", st.History[0].ID)
}

func TestSucceededWithMissingFreightLeavesPromotion(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	seedStage(t, ts.URL, "dev", "f1")

	// Freight "gone" was never stored.
	require.NoError(t, srv.store.InsertPromotion(&api.Promotion{
		Metadata: api.ObjectMeta{Namespace: "demo", Name: "p1", UID: "u1", CreationTimestamp: time.Now()},
		Spec:     api.PromotionSpec{Stage: "dev", Freight: "gone"},
		Status:   api.PromotionStatus{Phase: api.PhaseRunning},
	}))

	code := doJSON(t, http.MethodPut, ts.URL+"/v1/projects/demo/promotions/p1/status",
		api.PromotionStatus{Phase: api.PhaseSucceeded}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	p, err := srv.store.GetPromotion("demo", "p1")
	require.NoError(t, err)
	assert.Equal(t, api.PhaseRunning, p.Status.Phase)
}

func TestErrorStatusCodes(t *testing.T) {
	_, ts := newTestServer(t, nil)
	seedStage(t, ts.URL, "dev", "f1")
	base := ts.URL + "/v1/projects/demo"

	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/stages/dev/promotions",
		api.CreatePromotionRequest{Name: "p1", Freight: "f1"}, nil))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate name", http.MethodPost, "/stages/dev/promotions", api.CreatePromotionRequest{Name: "p1", Freight: "f1"}, http.StatusConflict},
		{"missing freight field", http.MethodPost, "/stages/dev/promotions", api.CreatePromotionRequest{Name: "p2"}, http.StatusBadRequest},
		{"unknown freight", http.MethodPost, "/stages/dev/promotions", api.CreatePromotionRequest{Freight: "nope"}, http.StatusNotFound},
		{"unknown stage", http.MethodPost, "/stages/qa/promotions", api.CreatePromotionRequest{Freight: "f1"}, http.StatusNotFound},
		{"invalid phase", http.MethodPut, "/promotions/p1/status", api.PromotionStatus{Phase: "Exploded"}, http.StatusBadRequest},
		{"empty phase", http.MethodPut, "/promotions/p1/status", api.PromotionStatus{}, http.StatusBadRequest},
		{"unknown promotion", http.MethodPut, "/promotions/nope/status", api.PromotionStatus{Phase: api.PhaseRunning}, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/promotions/nope", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, doJSON(t, tc.method, base+tc.path, tc.body, nil))
		})
	}

	req, _ := http.NewRequest(http.MethodPut, base+"/freight/f9", strings.NewReader("{not json"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenAuth(t *testing.T) {
	const secret = "s3cret"
	_, ts := newTestServer(t, func(c *Config) { c.TokenSecret = secret })

	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil, nil))

	bad, err := IssueToken("other", "ci", time.Minute)
	require.NoError(t, err)
	good, err := IssueToken(secret, "ci", time.Minute)
	require.NoError(t, err)

	for token, want := range map[string]int{bad: http.StatusUnauthorized, good: http.StatusOK} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/projects/demo/stages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode)
	}
}

func TestVerifyToken(t *testing.T) {
	token, err := IssueToken("k", "ci", 0)
	require.NoError(t, err)
	sub, err := VerifyToken("k", token)
	require.NoError(t, err)
	assert.Equal(t, "ci", sub)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "freightview",
		Subject:   "ci",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = VerifyToken("k", expired)
	assert.Error(t, err)

	_, err = IssueToken("", "ci", 0)
	assert.Error(t, err)
}
