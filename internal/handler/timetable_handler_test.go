package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/service"
	"github.com/schedulify/timetable-api/pkg/config"
)

func newGenerateHandler() *TimetableHandler {
	cfg := config.GeneratorConfig{
		Days:        []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		MaxAttempts: 1000,
	}
	svc := service.NewTimetableService(nil, nil, nil, cfg, zap.NewNop())
	return NewTimetableHandler(svc, nil)
}

func postGenerate(t *testing.T, handler *TimetableHandler, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	return w
}

func validGeneratePayload() []byte {
	return []byte(`{
		"teachers": [{"id":"t1","name":"Alice","subjects":["Math"]}],
		"rooms": [{"id":"r1","name":"Room 101"}],
		"subjects": [{"id":"s1","name":"Math"}],
		"sections": [{"id":"c1","name":"Section A"}],
		"timeSlots": [{"id":"ts1","start":"08:00","end":"09:00"}],
		"seed": 7
	}`)
}

func TestGenerateLegacyWireContract(t *testing.T) {
	w := postGenerate(t, newGenerateHandler(), validGeneratePayload())

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "success")
	assert.Contains(t, body, "timetable")
	assert.Contains(t, body, "timeSlots")
	assert.Contains(t, body, "fitness")
	assert.NotContains(t, body, "data")

	var success bool
	require.NoError(t, json.Unmarshal(body["success"], &success))
	assert.True(t, success)

	var slots []string
	require.NoError(t, json.Unmarshal(body["timeSlots"], &slots))
	assert.Equal(t, []string{"08:00 - 09:00"}, slots)
}

func TestGenerateMalformedBody(t *testing.T) {
	w := postGenerate(t, newGenerateHandler(), []byte(`{"teachers":`))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, w.Body.String())
}

func TestGenerateMissingCollections(t *testing.T) {
	w := postGenerate(t, newGenerateHandler(), []byte(`{"teachers":[{"id":"t1","name":"Alice","subjects":["Math"]}]}`))

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}
