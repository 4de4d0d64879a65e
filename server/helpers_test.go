package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/authbackend/fakebackend"
	"github.com/jrsteele09/brandbolt/internal/config"
	"github.com/jrsteele09/brandbolt/pendingpath"
	"github.com/jrsteele09/brandbolt/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "jane.doe@example.com"
	testPassword = "correct-horse"
)

type testServer struct {
	backend *fakebackend.FakeBackend
	pending *pendingpath.InMemoryRepo
	server  *server.Server
	http    *httptest.Server
	client  *http.Client
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("CALLBACK_TIMEOUT", "2s")
	t.Setenv("CALLBACK_ERROR_DELAY", "3s")

	backend := fakebackend.NewFakeBackend()
	pending := pendingpath.NewInMemoryRepo(time.Minute)
	srv, err := server.New(config.New(), server.Deps{
		Backends: func(clientID string) authbackend.Client { return backend },
		Pending:  pending,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Clients().Close)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testServer{backend: backend, pending: pending, server: srv, http: ts, client: client}
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.client.Post(ts.http.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

type stateBody struct {
	State struct {
		Status          string `json:"status"`
		IsAuthenticated bool   `json:"is_authenticated"`
		IsInitialized   bool   `json:"is_initialized"`
		Error           string `json:"error"`
		ErrorCode       string `json:"error_code"`
		User            *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	} `json:"state"`
	NavigateTo string `json:"navigate_to"`
}

func decodeState(t *testing.T, resp *http.Response) stateBody {
	t.Helper()
	var body stateBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
