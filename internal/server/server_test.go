package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/persona/internal/metrics"
	"github.com/ppiankov/persona/internal/model"
)

type fakeRunner struct {
	err        error
	identities []string
}

func (f *fakeRunner) Run(ctx context.Context, identity string) (*model.PersonaDocument, error) {
	f.identities = append(f.identities, identity)
	if f.err != nil {
		return nil, f.err
	}
	return &model.PersonaDocument{
		RunID:    "run-1",
		Username: identity,
		Text:     "Username: " + identity + "\nAccount Age: 6 years\n",
		Confidence: model.Confidence{
			Level: model.ConfidenceHigh,
			Index: 82,
		},
	}, nil
}

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	srv := New(runner, metrics.New(), nil, time.Minute)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_GeneratePersona(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner)

	resp, err := http.Post(ts.URL+"/v1/personas/kojied", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc model.PersonaDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "kojied", doc.Username)
	assert.Equal(t, 82, doc.Confidence.Index)
	assert.Equal(t, []string{"kojied"}, runner.identities)
}

func TestServer_GeneratePersonaText(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})

	resp, err := http.Post(ts.URL+"/v1/personas/kojied?format=text", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "Username: kojied\n"))
}

func TestServer_GenerateFromBody(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner)

	resp, err := http.Post(ts.URL+"/v1/personas/", "application/json",
		strings.NewReader(`{"identity":"https://www.reddit.com/user/kojied/"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"https://www.reddit.com/user/kojied/"}, runner.identities)

	bad, err := http.Post(ts.URL+"/v1/personas/", "application/json", strings.NewReader(`{"user":"x"}`))
	require.NoError(t, err)
	defer func() { _ = bad.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		kind   model.ErrorKind
		status int
	}{
		{model.KindInput, http.StatusBadRequest},
		{model.KindRetrieval, http.StatusBadGateway},
		{model.KindEmptyEvidence, http.StatusUnprocessableEntity},
		{model.KindGeneration, http.StatusBadGateway},
		{model.KindCitationViolation, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			runner := &fakeRunner{err: model.NewError(tt.kind, "kojied", errors.New("boom"))}
			ts := newTestServer(t, runner)

			resp, err := http.Post(ts.URL+"/v1/personas/kojied", "", nil)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, string(tt.kind), body.Error)
			assert.Contains(t, body.Message, "boom")
		})
	}
}

func TestStatusFor_Unclassified(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk full")))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(fmt.Errorf("run: %w", context.DeadlineExceeded)))
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.IncrementOutcome(metrics.OutcomeSuccess)
	ts := httptest.NewServer(New(&fakeRunner{}, m, nil, 0).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "persona_runs_total")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{})

	resp, err := http.Get(ts.URL + "/v1/personas/kojied")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
