package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/comfforts/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/pkg/domain"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (*domain.Prediction, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prediction), args.Error(1)
}

func (m *mockClassifier) Ready() error {
	return m.Called().Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mortgagePrediction() *domain.Prediction {
	probs := make([]float64, 20)
	for i := range probs {
		probs[i] = 0.01
	}
	probs[12] = 0.81
	return domain.NewPrediction(domain.DepartmentRegistry(), probs)
}

func TestClassifyHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*mockClassifier)
		wantStatus int
		check      func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "successful classification",
			body: `{"text": "  my mortgage escrow was miscalculated  "}`,
			setup: func(m *mockClassifier) {
				m.On("Classify", mock.Anything, "my mortgage escrow was miscalculated").
					Return(mortgagePrediction(), nil).Once()
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp predictionResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "Mortgage", resp.TopLabel)
				assert.InDelta(t, 0.81, resp.Confidence, 1e-9)
				assert.Equal(t, domain.BandHigh, resp.Band)
				assert.Len(t, resp.Distribution, 20)
				assert.Equal(t, "Mortgage", resp.Distribution[0].Label)
				assert.NotEmpty(t, resp.RequestID)
			},
		},
		{
			name:       "blank text rejected before classification",
			body:       `{"text": "   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing text",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "model not loaded",
			body: `{"text": "card charged twice"}`,
			setup: func(m *mockClassifier) {
				m.On("Classify", mock.Anything, "card charged twice").Return(nil, triage.ErrNotLoaded).Once()
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "model failed to load",
			body: `{"text": "card charged twice"}`,
			setup: func(m *mockClassifier) {
				m.On("Classify", mock.Anything, "card charged twice").
					Return(nil, &triage.LoadError{Stage: triage.StageAdapter, Err: errors.New("missing")}).Once()
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "forward pass failure",
			body: `{"text": "card charged twice"}`,
			setup: func(m *mockClassifier) {
				m.On("Classify", mock.Anything, "card charged twice").Return(nil, errors.New("ORT Run")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockClassifier)
			if tt.setup != nil {
				tt.setup(m)
			}
			r := NewRouter(testLogger(), m)

			req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, rec)
			}
			m.AssertExpectations(t)
		})
	}
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/classify/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestClassifyFileHandler(t *testing.T) {
	t.Run("text attachment", func(t *testing.T) {
		m := new(mockClassifier)
		m.On("Classify", mock.Anything, "Collector keeps calling my work.").
			Return(mortgagePrediction(), nil).Once()

		rec := httptest.NewRecorder()
		NewRouter(testLogger(), m).ServeHTTP(rec, multipartRequest(t, "complaint.txt", []byte("Collector keeps calling my work.\n")))

		assert.Equal(t, http.StatusOK, rec.Code)
		m.AssertExpectations(t)
	})

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"unsupported extension", "complaint.docx", []byte("text")},
		{"empty text file", "complaint.txt", []byte("  \n ")},
		{"broken pdf", "complaint.pdf", []byte("not a pdf")},
		{"too large", "complaint.txt", bytes.Repeat([]byte("a"), maxUploadSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockClassifier)
			rec := httptest.NewRecorder()
			NewRouter(testLogger(), m).ServeHTTP(rec, multipartRequest(t, tt.filename, tt.content))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			m.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/classify/file", nil)
		NewRouter(testLogger(), new(mockClassifier)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLabelsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(testLogger(), new(mockClassifier)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/labels", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var labels []labelResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&labels))
	require.Len(t, labels, 20)
	assert.Equal(t, labelResponse{ID: 0, Label: "Bank account or service"}, labels[0])
	assert.Equal(t, labelResponse{ID: 19, Label: "Vehicle loan or lease"}, labels[19])
}

func TestHealthHandlers(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRouter(testLogger(), new(mockClassifier)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	tests := []struct {
		name       string
		readyErr   error
		wantStatus int
		wantState  string
	}{
		{"ready", nil, http.StatusOK, "ready"},
		{"loading", triage.ErrNotLoaded, http.StatusServiceUnavailable, "loading"},
		{"failed", &triage.LoadError{Stage: triage.StageTokenizer, Err: errors.New("401")}, http.StatusServiceUnavailable, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockClassifier)
			m.On("Ready").Return(tt.readyErr)

			rec := httptest.NewRecorder()
			NewRouter(testLogger(), m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantState, body["status"])
		})
	}
}

func postForm(complaint string) *http.Request {
	form := url.Values{"complaint": {complaint}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPage(t *testing.T) {
	t.Run("renders form", func(t *testing.T) {
		m := new(mockClassifier)
		m.On("Ready").Return(nil)

		rec := httptest.NewRecorder()
		NewRouter(testLogger(), m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Intelligent Ticket Triage")
		assert.Contains(t, rec.Body.String(), "Classify Ticket")
	})

	t.Run("warns on empty complaint", func(t *testing.T) {
		m := new(mockClassifier)
		m.On("Ready").Return(nil)

		rec := httptest.NewRecorder()
		NewRouter(testLogger(), m).ServeHTTP(rec, postForm("   "))

		assert.Contains(t, rec.Body.String(), "Please enter some text.")
		m.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	})

	t.Run("shows prediction", func(t *testing.T) {
		m := new(mockClassifier)
		m.On("Ready").Return(nil)
		m.On("Classify", mock.Anything, "escrow shortage").Return(mortgagePrediction(), nil).Once()

		rec := httptest.NewRecorder()
		NewRouter(testLogger(), m).ServeHTTP(rec, postForm("escrow shortage"))

		body := rec.Body.String()
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body, "Mortgage")
		assert.Contains(t, body, "81.0%")
		assert.Contains(t, body, `class="high"`)
	})

	t.Run("shows load failure", func(t *testing.T) {
		m := new(mockClassifier)
		m.On("Ready").Return(&triage.LoadError{Stage: triage.StageRuntime, Err: errors.New("missing path to onnxruntime")})

		rec := httptest.NewRecorder()
		NewRouter(testLogger(), m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Contains(t, rec.Body.String(), "Error loading model")
		assert.Contains(t, rec.Body.String(), "missing path to onnxruntime")
	})
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingLogger) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingLogger) Debug(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Info(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Warn(msg string, _ ...any) { r.record(msg) }
func (r *recordingLogger) Error(msg string, _ ...any) { r.record(msg) }

func TestRouterAcceptsContextLogger(t *testing.T) {
	rl := &recordingLogger{}
	m := new(mockClassifier)
	m.On("Classify", mock.MatchedBy(func(ctx context.Context) bool {
		l, err := logger.LoggerFromContext(ctx)
		return err == nil && l == logger.Logger(rl)
	}), "escrow shortage").Return(mortgagePrediction(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"text": "escrow shortage"}`))
	rec := httptest.NewRecorder()
	NewRouter(rl, m).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rl.msgs, "request")
	m.AssertExpectations(t)
}
