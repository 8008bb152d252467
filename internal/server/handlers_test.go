package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiocards/internal/archive"
	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/job"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/metrics"
	"github.com/maauso/audiocards/internal/storage"
)

// fakePipeline echoes its inputs so responses can be checked byte for byte.
type fakePipeline struct {
	target loudness.Target
	block  chan struct{}
}

func (p *fakePipeline) Normalize(ctx context.Context, data []byte, target loudness.Target, progress audio.Progress) ([]byte, error) {
	p.target = target
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	progress(100)
	return append([]byte("norm:"), data...), nil
}

func (p *fakePipeline) Cut(_ context.Context, data, transcript []byte, suffix string, _ audio.Progress) ([]archive.Entry, error) {
	return []archive.Entry{
		{Name: "1-a-" + suffix + ".mp3", Data: data},
		{Name: "2-b-" + suffix + ".mp3", Data: transcript},
	}, nil
}

func (p *fakePipeline) Join(_ context.Context, files []archive.Entry, mode audio.Mode, _ audio.Progress) ([]byte, error) {
	var out []byte
	for _, f := range files {
		out = append(out, f.Data...)
	}
	return append([]byte(mode+":"), out...), nil
}

func (p *fakePipeline) Pair(table []byte, names []string, _ audio.Progress) ([]byte, error) {
	if string(table) == "bad" {
		return nil, errors.New("row count 2 does not match file count 1")
	}
	return append(table, []byte("\t"+strings.Join(names, ","))...), nil
}

type testServer struct {
	handler  http.Handler
	service  *job.Service
	pipeline *fakePipeline
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, maxBody int64) *testServer {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &fakePipeline{}
	m := metrics.NewMetrics()
	svc := job.NewService(job.NewMemoryRepository(), p, store,
		job.WithServiceLogger(logger),
		job.WithMetrics(m),
	)
	h := NewHandlers(svc, logger, WithDefaultTarget(loudness.Target{IntegratedLUFS: -20, TruePeakDBTP: -2}))

	cfg := DefaultConfig()
	cfg.Metrics = m
	if maxBody > 0 {
		cfg.MaxBodyBytes = maxBody
	}
	return &testServer{handler: NewRouter(h, logger, cfg), service: svc, pipeline: p, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// submit posts body and returns the job ID of the accepted job.
func (s *testServer) submit(t *testing.T, path string, body any) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(job.StatusInQueue), resp.Status)
	s.service.Wait()
	return resp.ID
}

func (s *testServer) job(t *testing.T, id string) JobResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNormalize(t *testing.T) {
	s := newTestServer(t, 0)

	id := s.submit(t, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("wav")})

	got := s.job(t, id)
	assert.Equal(t, "normalize", got.Kind)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, job.NormalizedFileName, got.FileName)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, loudness.Target{IntegratedLUFS: -20, TruePeakDBTP: -2}, s.pipeline.target)

	rec := s.do(t, http.MethodGet, "/jobs/"+id+"/artifact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="normalized.mp3"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "norm:wav", rec.Body.String())
}

func TestNormalize_TargetOverride(t *testing.T) {
	s := newTestServer(t, 0)

	s.submit(t, "/jobs/normalize", `{"audio_base64":"`+b64("wav")+`","target_lufs":-16}`)

	assert.Equal(t, loudness.Target{IntegratedLUFS: -16, TruePeakDBTP: -2}, s.pipeline.target)
}

func TestNormalize_Validation(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{`, "INVALID_JSON"},
		{"missing audio", `{}`, "VALIDATION_ERROR"},
		{"not base64", `{"audio_base64":"%%%"}`, "VALIDATION_ERROR"},
		{"target out of range", `{"audio_base64":"` + b64("x") + `","target_lufs":0}`, "VALIDATION_ERROR"},
		{"peak out of range", `{"audio_base64":"` + b64("x") + `","peak_dbtp":-12}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/jobs/normalize", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestChainedJobs(t *testing.T) {
	s := newTestServer(t, 0)

	norm := s.submit(t, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("A")})
	cut := s.submit(t, "/jobs/cut", CutRequest{SourceJobID: norm, TranscriptBase64: b64("T"), Suffix: "S"})

	cutJob := s.job(t, cut)
	assert.Equal(t, "COMPLETED", cutJob.Status)
	assert.Equal(t, norm, cutJob.SourceJobID)
	assert.Equal(t, "chunks-S.zip", cutJob.FileName)
	assert.Equal(t, []string{"1-a-S.mp3", "2-b-S.mp3"}, cutJob.Names)

	rec := s.do(t, http.MethodGet, "/jobs/"+cut+"/artifact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	entries, err := archive.Unpack(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("norm:A"), entries[0].Data)

	join := s.submit(t, "/jobs/join", JoinRequest{SourceJobID: cut, Mode: "SAI", Suffix: "S"})
	assert.Equal(t, "SAI-S.mp3", s.job(t, join).FileName)
	rec = s.do(t, http.MethodGet, "/jobs/"+join+"/artifact", nil)
	assert.Equal(t, "SAI:norm:AT", rec.Body.String())

	anki := s.submit(t, "/jobs/anki", AnkiRequest{SourceJobID: cut, TableBase64: b64("front\tback")})
	rec = s.do(t, http.MethodGet, "/jobs/"+anki+"/artifact", nil)
	assert.Equal(t, "text/tab-separated-values", rec.Header().Get("Content-Type"))
	assert.Equal(t, "front\tback\t1-a-S.mp3,2-b-S.mp3", rec.Body.String())
}

func TestJoin_InlineFiles(t *testing.T) {
	s := newTestServer(t, 0)

	id := s.submit(t, "/jobs/join", JoinRequest{
		Files: []FileDTO{
			{Name: "1-a.mp3", DataBase64: b64("x")},
			{Name: "2-b.mp3", DataBase64: b64("y")},
		},
		Mode: "LAR",
	})

	got := s.job(t, id)
	assert.Equal(t, "LAR-"+job.DefaultSuffix+".mp3", got.FileName)
	rec := s.do(t, http.MethodGet, "/jobs/"+id+"/artifact", nil)
	assert.Equal(t, "LAR:xy", rec.Body.String())
}

func TestJoin_Validation(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		body any
	}{
		{"no files or source", JoinRequest{Mode: "SAI"}},
		{"bad mode", JoinRequest{SourceJobID: "job-1", Mode: "sai"}},
		{"file without data", JoinRequest{Files: []FileDTO{{Name: "1.mp3"}}, Mode: "SAI"}},
		{"malformed source id", JoinRequest{SourceJobID: "abc", Mode: "SAI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/jobs/join", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}
}

func TestSuffix_PathSeparators(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"cut slash", "/jobs/cut", CutRequest{AudioBase64: b64("A"), Suffix: "x/y"}},
		{"cut parent dir", "/jobs/cut", CutRequest{AudioBase64: b64("A"), Suffix: "../../tmp"}},
		{"cut backslash", "/jobs/cut", CutRequest{AudioBase64: b64("A"), Suffix: `x\y`}},
		{"join slash", "/jobs/join", JoinRequest{Files: []FileDTO{{Name: "1.mp3", DataBase64: b64("x")}}, Mode: "SAI", Suffix: "a/b"}},
		{"join backslash", "/jobs/join", JoinRequest{Files: []FileDTO{{Name: "1.mp3", DataBase64: b64("x")}}, Mode: "SAI", Suffix: `a\b`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		})
	}

	rec := s.do(t, http.MethodGet, "/jobs", nil)
	var resp JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Jobs, "rejected requests create no job")
}

func TestSourceJobErrors(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/jobs/cut", CutRequest{SourceJobID: "job-missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", errorCode(t, rec))

	norm := s.submit(t, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("A")})
	rec = s.do(t, http.MethodPost, "/jobs/join", JoinRequest{SourceJobID: norm, Mode: "SAI"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestAnki_Failure(t *testing.T) {
	s := newTestServer(t, 0)

	id := s.submit(t, "/jobs/anki", AnkiRequest{TableBase64: b64("bad"), FileNames: []string{"1.mp3"}})

	got := s.job(t, id)
	assert.Equal(t, "FAILED", got.Status)
	assert.Equal(t, "row count 2 does not match file count 1", got.Error)
	assert.Empty(t, got.FileName)

	rec := s.do(t, http.MethodGet, "/jobs/"+id+"/artifact", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_COMPLETED", errorCode(t, rec))
}

func TestAnki_EmptyNames(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/jobs/anki", `{"table_base64":"`+b64("t")+`","file_names":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/jobs/job-nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/jobs/job-nope/artifact", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t, 0)
	first := s.submit(t, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("A")})
	second := s.submit(t, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("B")})

	rec := s.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, first, resp.Jobs[0].ID)
	assert.Equal(t, second, resp.Jobs[1].ID)
}

func TestCancelJob(t *testing.T) {
	s := newTestServer(t, 0)
	s.pipeline.block = make(chan struct{})

	rec := s.do(t, http.MethodPost, "/jobs/normalize", NormalizeRequest{AudioBase64: b64("A")})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(t, http.MethodDelete, "/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s.service.Wait()

	assert.Equal(t, "CANCELLED", s.job(t, created.ID).Status)

	rec = s.do(t, http.MethodDelete, "/jobs/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_FINISHED", errorCode(t, rec))
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t, 64)

	rec := s.do(t, http.MethodPost, "/jobs/normalize", NormalizeRequest{AudioBase64: b64(strings.Repeat("x", 200))})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.do(t, http.MethodGet, "/health", nil)
	s.do(t, http.MethodGet, "/jobs/job-nope", nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audiocards_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "GET /health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues("GET", "GET /jobs/{id}", "404")))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://cards.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/jobs/cut", nil)
	req.Header.Set("Origin", "https://cards.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://cards.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
