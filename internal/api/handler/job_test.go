package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/model"
	"github.com/qs3c/tender_rag_server/internal/model/dto"
	"github.com/qs3c/tender_rag_server/internal/pkg/queue"
	"github.com/qs3c/tender_rag_server/internal/pkg/response"
	"github.com/qs3c/tender_rag_server/internal/repository"
	"github.com/qs3c/tender_rag_server/internal/service"
	"github.com/qs3c/tender_rag_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type jobFixture struct {
	router *gin.Engine
	store  *repository.RedisJobStore
	queue  *queue.Queue
	mr     *miniredis.Miniredis
	svc    *service.JobService
}

func testHandlerConfig() *config.Config {
	return &config.Config{
		Output: config.OutputConfig{DownloadName: "SeismaResponse.xlsx"},
		Upload: config.UploadConfig{
			MaxSize:           1024 * 1024,
			AllowedExtensions: []string{".xlsx", ".xlsm"},
		},
	}
}

func setupJobHandler(t *testing.T) *jobFixture {
	t.Helper()

	client, mr := testutil.SetupTestRedis(t)
	store := repository.NewRedisJobStore(client, "tender:job:", time.Hour)
	q := queue.NewQueue(client, "tender_jobs")
	svc := service.NewJobService(store, q, nil)
	h := NewJobHandler(svc, testHandlerConfig())

	router := gin.New()
	router.POST("/upload", h.Upload)
	router.GET("/status/:job_id", h.Status)
	router.GET("/download/:job_id", h.Download)
	router.GET("/heartbeat", h.Heartbeat)

	return &jobFixture{router: router, store: store, queue: q, mr: mr, svc: svc}
}

func multipartRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (int, T) {
	t.Helper()
	var resp struct {
		Code int `json:"code"`
		Data T   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code, resp.Data
}

func TestJobHandler_Upload(t *testing.T) {
	f := setupJobHandler(t)
	content := testutil.Workbook(t, []string{"Requirement"}, []string{"Is X supported?"})

	w := serve(f.router, multipartRequest(t, "tender.xlsx", content))
	require.Equal(t, http.StatusOK, w.Code)

	code, data := decode[dto.SubmitJobResponse](t, w)
	assert.Equal(t, response.CodeSuccess, code)
	_, err := uuid.Parse(data.JobID)
	require.NoError(t, err)

	job, err := f.store.Get(context.Background(), data.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStarted, job.Status)

	msg, err := f.queue.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, data.JobID, msg.JobID)
	assert.Equal(t, "tender.xlsx", msg.Filename)
	assert.Equal(t, content, msg.Contents)
}

func TestJobHandler_Upload_Rejected(t *testing.T) {
	f := setupJobHandler(t)

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		w := serve(f.router, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong extension", func(t *testing.T) {
		w := serve(f.router, multipartRequest(t, "tender.csv", []byte("a,b")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		code, _ := decode[any](t, w)
		assert.Equal(t, response.CodeParamError, code)
	})

	t.Run("too large", func(t *testing.T) {
		w := serve(f.router, multipartRequest(t, "tender.xlsx", bytes.Repeat([]byte("x"), 1024*1024+1)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	length, err := f.queue.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestJobHandler_Upload_StoreDown(t *testing.T) {
	f := setupJobHandler(t)
	f.mr.Close()

	w := serve(f.router, multipartRequest(t, "tender.xlsx", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestJobHandler_Status(t *testing.T) {
	f := setupJobHandler(t)

	t.Run("unknown job", func(t *testing.T) {
		w := serve(f.router, httptest.NewRequest(http.MethodGet, "/status/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		code, _ := decode[any](t, w)
		assert.Equal(t, response.CodeResourceNotFound, code)
	})

	t.Run("processing", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusProcessing, testutil.WithProgress(12.5))
		require.NoError(t, f.store.Save(context.Background(), job))

		w := serve(f.router, httptest.NewRequest(http.MethodGet, "/status/"+job.ID, nil))
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decode[dto.JobStatusResponse](t, w)
		assert.Equal(t, job.ID, data.JobID)
		assert.Equal(t, "PROCESSING", data.Status)
		assert.Equal(t, 12.5, data.Progress)
	})

	t.Run("failure", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusFailure, testutil.WithProgress(40), testutil.WithError("secret internal detail"))
		require.NoError(t, f.store.Save(context.Background(), job))

		w := serve(f.router, httptest.NewRequest(http.MethodGet, "/status/"+job.ID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "secret internal detail")

		_, data := decode[dto.JobStatusResponse](t, w)
		assert.Equal(t, "FAILURE", data.Status)
		assert.Equal(t, 0.0, data.Progress)
		assert.Equal(t, "Task failed", data.Error)
	})
}

func TestJobHandler_Status_StoreDown(t *testing.T) {
	f := setupJobHandler(t)
	f.mr.Close()

	w := serve(f.router, httptest.NewRequest(http.MethodGet, "/status/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	code, _ := decode[any](t, w)
	assert.Equal(t, response.CodeServiceUnavailable, code)
}

func TestJobHandler_Download(t *testing.T) {
	f := setupJobHandler(t)

	path := filepath.Join(t.TempDir(), "processed_tender.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx-report"), 0644))
	job := testutil.TestJob(model.JobStatusSuccess, testutil.WithProgress(100), testutil.WithDownloadPath(path))
	require.NoError(t, f.store.Save(context.Background(), job))

	w := serve(f.router, httptest.NewRequest(http.MethodGet, "/download/"+job.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=SeismaResponse.xlsx", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Equal(t, "xlsx-report", w.Body.String())
}

func TestJobHandler_Download_NotReady(t *testing.T) {
	f := setupJobHandler(t)

	tests := []struct {
		name    string
		job     *model.JobRecord
		message string
	}{
		{"processing", testutil.TestJob(model.JobStatusProcessing), "Task is not completed or failed"},
		{"failed", testutil.TestJob(model.JobStatusFailure), "Task is not completed or failed"},
		{"no path", testutil.TestJob(model.JobStatusSuccess), "No file available for download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.store.Save(context.Background(), tt.job))

			w := serve(f.router, httptest.NewRequest(http.MethodGet, "/download/"+tt.job.ID, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, response.CodeJobNotReady, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		w := serve(f.router, httptest.NewRequest(http.MethodGet, "/download/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("file removed", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusSuccess, testutil.WithDownloadPath(filepath.Join(t.TempDir(), "gone.xlsx")))
		require.NoError(t, f.store.Save(context.Background(), job))

		w := serve(f.router, httptest.NewRequest(http.MethodGet, "/download/"+job.ID, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobHandler_Heartbeat(t *testing.T) {
	f := setupJobHandler(t)

	w := serve(f.router, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode[dto.HealthResponse](t, w)
	assert.Equal(t, "ok", data.Status)

	f.mr.Close()

	w = serve(f.router, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Job store is not running", envelopeMessage(t, w))
}

type downBroker struct {
	queue.Broker
}

func (downBroker) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestJobHandler_Heartbeat_BrokerDown(t *testing.T) {
	f := setupJobHandler(t)
	h := NewJobHandler(service.NewJobService(f.store, downBroker{}, nil), testHandlerConfig())
	router := gin.New()
	router.GET("/heartbeat", h.Heartbeat)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Job queue is not running", envelopeMessage(t, w))
}

func envelopeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Message
}
