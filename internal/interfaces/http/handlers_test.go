package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/application/service"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/infrastructure/dataset"
	"github.com/garyjia/fraudguard/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fraudguard/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fraudguard/pkg/database"
	"github.com/garyjia/fraudguard/pkg/utils"
)

type stubInspector struct{}

func (stubInspector) Inspect(name string, content []byte) entity.Document {
	mediaType := "text/plain"
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		mediaType = entity.MediaTypePDF
	case ".png":
		mediaType = "image/png"
	}
	return entity.Document{Name: name, Content: content, MediaType: mediaType, Pages: 1}
}

type stubFraudClient struct {
	results map[string]*entity.ExtractedData
	errs    map[string]error
}

func (s *stubFraudClient) Analyze(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error) {
	if err, ok := s.errs[doc.Name]; ok {
		return nil, err
	}
	if data, ok := s.results[doc.Name]; ok {
		return data, nil
	}
	return &entity.ExtractedData{FraudStatus: entity.FraudStatusClean}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupServer(t *testing.T, client port.FraudDetectionClient, opts ...func(*ServerConfig)) *Server {
	t.Helper()

	zl := zap.NewNop()
	logger := utils.NewKVLogger(zl)

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zl).RunMigrations(database.EmbeddedMigrations()))

	repo := repository.NewClaimRepository(db.DB, zl)
	claims := service.NewClaimsService(repo, sqlite.NewTxManager(db), dataset.NewExcel("Claims", zl), "", logger)
	_, err = claims.Seed(context.Background())
	require.NoError(t, err)

	uploads := service.NewUploadOrchestrator(service.NewUploadBoard(), client, dispatcher.NewDispatcher(), logger)

	cfg := DefaultServerConfig()
	cfg.MaxUploadSize = 1 << 20
	for _, opt := range opts {
		opt(&cfg)
	}

	return NewServer(cfg, Services{
		Uploads:   uploads,
		Inspector: stubInspector{},
		Claims:    claims,
		Analytics: service.NewAnalyticsService(repo, logger),
	}, logger)
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, names ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := mw.CreateFormFile(UploadField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	s := setupServer(t, &stubFraudClient{})

	w, env := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploads_SubmitAndPoll(t *testing.T) {
	client := &stubFraudClient{
		results: map[string]*entity.ExtractedData{
			"bill.pdf": {ClaimID: "CLM900", FraudStatus: entity.FraudStatusFraudulent, Amount: 1200},
		},
		errs: map[string]error{
			"scan.png": &port.StatusError{StatusCode: http.StatusInternalServerError},
		},
	}
	s := setupServer(t, client)

	w, env := do(t, s, uploadRequest(t, "bill.pdf", "scan.png"))
	require.Equal(t, http.StatusAccepted, w.Code, env.Error)

	var accepted BatchResponse
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.Len(t, accepted.Files, 2)
	assert.Equal(t, "bill.pdf", accepted.Files[0].Name)
	assert.Equal(t, entity.FileStatusProcessing, accepted.Files[0].Status)
	assert.Equal(t, accepted.Batch.FileIDs[1], accepted.Files[1].ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Handlers().WaitForBatches(ctx))

	w, env = get(t, s, "/api/uploads")
	require.Equal(t, http.StatusOK, w.Code)
	var board BoardResponse
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board.Files, 2)
	assert.Equal(t, 100.0, board.Progress)
	assert.False(t, board.Processing)
	assert.Equal(t, entity.FileStatusCompleted, board.Files[0].Status)
	assert.Equal(t, entity.FraudStatusFraudulent, board.Files[0].FraudStatus)
	assert.Equal(t, entity.FileStatusFailed, board.Files[1].Status)
	assert.Equal(t, "HTTP error: status 500", board.Files[1].Error)

	w, env = get(t, s, "/api/uploads/"+accepted.Files[0].ID)
	require.Equal(t, http.StatusOK, w.Code)
	var file entity.UploadedFile
	require.NoError(t, json.Unmarshal(env.Data, &file))
	require.NotNil(t, file.ExtractedData)
	assert.Equal(t, "CLM900", file.ExtractedData.ClaimID)

	w, env = get(t, s, "/api/uploads/batches/"+accepted.Batch.ID)
	require.Equal(t, http.StatusOK, w.Code)
	var progress entity.BatchProgress
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.True(t, progress.Done)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 1, progress.Failed)
}

func TestUploads_Rejections(t *testing.T) {
	s := setupServer(t, &stubFraudClient{})

	t.Run("no files", func(t *testing.T) {
		w, env := do(t, s, uploadRequest(t))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("unsupported media type rejects the batch", func(t *testing.T) {
		w, env := do(t, s, uploadRequest(t, "bill.pdf", "notes.txt"))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Contains(t, env.Error, "notes.txt")

		_, env = get(t, s, "/api/uploads")
		var board BoardResponse
		require.NoError(t, json.Unmarshal(env.Data, &board))
		assert.Empty(t, board.Files)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w, _ := do(t, s, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown entry and batch", func(t *testing.T) {
		w, _ := get(t, s, "/api/uploads/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		w, _ = get(t, s, "/api/uploads/batches/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestClaims(t *testing.T) {
	s := setupServer(t, &stubFraudClient{})

	t.Run("filters", func(t *testing.T) {
		w, env := get(t, s, "/api/claims?status=fraudulent")
		require.Equal(t, http.StatusOK, w.Code)
		var resp ClaimsResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, "CLM002", resp.Claims[0].ID)
		assert.Equal(t, "CLM005", resp.Claims[1].ID)
		assert.Equal(t, entity.FilterAll, resp.Filter.Location)
	})

	t.Run("invalid status", func(t *testing.T) {
		w, env := get(t, s, "/api/claims?status=approved")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("locations", func(t *testing.T) {
		w, env := get(t, s, "/api/claims/locations")
		require.Equal(t, http.StatusOK, w.Code)
		var locations []string
		require.NoError(t, json.Unmarshal(env.Data, &locations))
		assert.Equal(t, []string{"Bangalore", "Delhi", "Mumbai", "Noida"}, locations)
	})

	t.Run("single claim", func(t *testing.T) {
		w, env := get(t, s, "/api/claims/CLM003")
		require.Equal(t, http.StatusOK, w.Code)
		var claim entity.Claim
		require.NoError(t, json.Unmarshal(env.Data, &claim))
		assert.Equal(t, "Amit Patel", claim.PatientName)

		w, _ = get(t, s, "/api/claims/CLM999")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("export", func(t *testing.T) {
		w, _ := get(t, s, "/api/claims/export?location=Delhi")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})
}

func TestAnalytics(t *testing.T) {
	s := setupServer(t, &stubFraudClient{})

	w, env := get(t, s, "/api/analytics")
	require.Equal(t, http.StatusOK, w.Code)

	var summary entity.AnalyticsSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 5, summary.Overview.TotalClaims)
	assert.Equal(t, 40.0, summary.Overview.FraudRate)
	assert.Len(t, summary.Regions, 4)
}

func TestCORSPreflight(t *testing.T) {
	s := setupServer(t, &stubFraudClient{})

	w, _ := do(t, s, httptest.NewRequest(http.MethodOptions, "/api/claims", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

// blockingFraudClient never answers until the request context is cancelled
type blockingFraudClient struct {
	started chan struct{}
}

func (b *blockingFraudClient) Analyze(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, fmt.Errorf("%w: %v", port.ErrServiceUnreachable, ctx.Err())
}

func TestStop_CancelsBatchesAfterDrainTimeout(t *testing.T) {
	client := &blockingFraudClient{started: make(chan struct{}, 1)}
	s := setupServer(t, client, func(cfg *ServerConfig) {
		cfg.ShutdownTimeout = 2 * time.Second
		cfg.BatchDrainTimeout = 50 * time.Millisecond
	})

	w, env := do(t, s, uploadRequest(t, "bill.pdf", "scan.png"))
	require.Equal(t, http.StatusAccepted, w.Code, env.Error)

	select {
	case <-client.started:
	case <-time.After(5 * time.Second):
		t.Fatal("batch never reached the fraud API")
	}

	require.NoError(t, s.Stop())

	_, env = get(t, s, "/api/uploads")
	var board BoardResponse
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board.Files, 2)
	assert.False(t, board.Processing)
	assert.Equal(t, 100.0, board.Progress)
	for _, f := range board.Files {
		assert.Equal(t, entity.FileStatusFailed, f.Status)
		assert.Equal(t, "network error: fraud detection service unreachable", f.Error)
	}
}

func TestStop_WaitsForBatchesWithinDrainTimeout(t *testing.T) {
	s := setupServer(t, &stubFraudClient{}, func(cfg *ServerConfig) {
		cfg.BatchDrainTimeout = 5 * time.Second
	})

	w, env := do(t, s, uploadRequest(t, "bill.pdf"))
	require.Equal(t, http.StatusAccepted, w.Code, env.Error)
	require.NoError(t, s.Stop())

	_, env = get(t, s, "/api/uploads")
	var board BoardResponse
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.Len(t, board.Files, 1)
	assert.Equal(t, entity.FileStatusCompleted, board.Files[0].Status)
}
