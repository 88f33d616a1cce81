package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/middleware/requestid"
)

type envelopeBody struct {
	Data       map[string]string      `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func record(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestJSONWritesEnvelopeAndDisablesCaching(t *testing.T) {
	rec, body := record(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, map[string]string{"id": "entry-1"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "entry-1", body.Data["id"])
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 1, body.Pagination.TotalCount)
	assert.Nil(t, body.Error)
}

func TestErrorUsesStatusAndRequestID(t *testing.T) {
	rec, body := record(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrInvalidState, "session is locked"))
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_STATE", body.Error.Code)
	assert.Equal(t, "session is locked", body.Error.Message)
	assert.Equal(t, "req-1", body.Meta["request_id"])
}

func TestErrorHidesUntypedFailures(t *testing.T) {
	rec, body := record(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
}
