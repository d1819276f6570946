package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeQuery struct {
	Start string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	Mode  string `query:"mode" default:"html" validate:"oneof=html json"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?start=2001-02-28", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	q := &rangeQuery{}
	assert.Nil(t, ReadAndValidateRequest(c, q))
	assert.Equal(t, "2001-02-28", q.Start)
	assert.Equal(t, "html", q.Mode)

	req = httptest.NewRequest(http.MethodGet, "/?start=28.02.2001", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	verr := ReadAndValidateRequest(c, &rangeQuery{})
	require.NotNil(t, verr)
	errs := verr.([]ValidationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_DATETIME", errs[0].Code)
	assert.Equal(t, "Start", errs[0].Field)
}

func TestAppErrorResponseUsesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := ServiceUnavailableError("ERR_SOURCE_UNAVAILABLE", "market data unavailable").WithError(errors.New("dial tcp"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_SOURCE_UNAVAILABLE", body.Data[0].Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "econdash-test", r.Header.Get("User-Agent"))
		if r.URL.Query().Get("fail") != "" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": r.URL.Query().Get("symbol")})
	}))
	defer srv.Close()

	client := NewClient(WithHeader("User-Agent", "econdash-test"))

	var out map[string]string
	err := client.SendAndParse(context.Background(), &RequestOptions{
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"^GSPC"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "^GSPC", out["symbol"])

	err = client.SendAndParse(context.Background(), &RequestOptions{
		URL:         srv.URL,
		QueryParams: map[string][]string{"fail": {"1"}},
	}, &out)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer(panicHandler{}, WithMetrics(false, 0))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
}
