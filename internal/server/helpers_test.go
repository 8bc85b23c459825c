package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/classfund/internal/app"
	"github.com/bobmcallan/classfund/internal/common"
)

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rr, http.StatusCreated, map[string]int{"n": 1}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rr.Body.String())
}

func TestWriteJSON_UnencodableValueIs500WithJSONBody(t *testing.T) {
	rr := httptest.NewRecorder()
	err := WriteJSON(rr, http.StatusOK, map[string]float64{"total": math.Inf(1)})
	require.Error(t, err)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "encode_failed", body.Code)
}

func TestPortfolio_UnencodableSnapshotLogged(t *testing.T) {
	var buf bytes.Buffer
	snap := sampleSnapshot()
	snap.TotalMarketValue = math.Inf(1)

	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           common.NewLoggerWithOutput("info", &buf),
		ValuationService: &mockValuationService{snap: snap},
	}
	rr := do(t, NewServer(a).Handler(), http.MethodGet, "/api/portfolio")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, json.Valid(rr.Body.Bytes()), "body must stay JSON: %s", rr.Body.String())
	assert.Contains(t, buf.String(), "Response encoding failed")
	assert.Contains(t, buf.String(), "unsupported value")
}

