package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDBDown = errors.New("db down")

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRunner struct {
	stages []string
	err    error
}

func (f *fakeRunner) RunStage(_ context.Context, stage string) (any, error) {
	f.stages = append(f.stages, stage)
	if f.err != nil {
		return nil, f.err
	}

	return map[string]int{"total_successful": 2}, nil
}

func newTestServer(p Pinger, r StageRunner) http.Handler {
	logger := zerolog.Nop()

	s := NewServer(p, 0, &logger)
	if r != nil {
		s.WithRunner(r)
	}

	return s.Handler()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	return rec
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newTestServer(fakePinger{}, nil), http.MethodGet, "/readyz").Code)

	rec := serve(newTestServer(fakePinger{err: errDBDown}, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestServer(fakePinger{}, nil)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics").Code)
}

func TestRunStage(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(fakePinger{}, runner)

	rec := serve(h, http.MethodPost, "/runs/digest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_successful":2}`, rec.Body.String())
	assert.Equal(t, []string{"digest"}, runner.stages)
}

func TestRunStage_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		ErrUnknownStage: http.StatusNotFound,
		ErrStageBusy:    http.StatusConflict,
		errDBDown:       http.StatusInternalServerError,
	}

	for err, want := range cases {
		h := newTestServer(fakePinger{}, &fakeRunner{err: err})
		assert.Equal(t, want, serve(h, http.MethodPost, "/runs/x").Code, err.Error())
	}
}

func TestRunStage_DisabledWithoutRunner(t *testing.T) {
	h := newTestServer(fakePinger{}, nil)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/runs/digest").Code)
}
