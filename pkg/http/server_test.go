package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowRequest struct {
	N       int    `query:"n" default:"5" validate:"gte=1,lte=100"`
	Variant string `query:"variant" default:"feed" validate:"oneof=latest feed logs"`
}

func testServer(origins ...string) *Server {
	return NewServer(RouteFunc(func(e *echo.Echo) {
		e.GET("/window", func(c echo.Context) error {
			req := &windowRequest{}
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/boom", func(echo.Context) error { panic("boom") })
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundError("no signal"))
		})
	}), WithCORSOrigins(origins...), WithMetricsPath(""))
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestValidationDefaultsAndErrors(t *testing.T) {
	s := testServer()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/window", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"N":5,"Variant":"feed"}}`, rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/window?n=101&variant=weekly", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "ERR_LTE", env.Data[0].Code)
	assert.Equal(t, "n", env.Data[0].Field)
	assert.Equal(t, "ERR_ONEOF", env.Data[1].Code)
	assert.Equal(t, "variant must be one of: latest, feed, logs", env.Data[1].Message)
}

func TestValidationBindFailure(t *testing.T) {
	rec := serve(testServer(), httptest.NewRequest(http.MethodGet, "/window?n=ten", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_BIND"`)
}

func TestValidateMessages(t *testing.T) {
	type parseRequest struct {
		Text   string `json:"text" validate:"required,max=4"`
		Market string `json:"market" validate:"min=2"`
		N      int    `json:"n" default:"5" validate:"gt=10"`
	}
	errs := Validate(context.Background(), &parseRequest{Text: "too long", Market: "x"})
	require.Len(t, errs, 3)
	assert.Equal(t, ValidationError{
		Code: "ERR_MAX", Field: "text", Message: "text must be at most 4 characters",
		Params: map[string]interface{}{"max": "4"},
	}, errs[0])
	assert.Equal(t, "market must be at least 2 characters", errs[1].Message)
	assert.Equal(t, "n must be greater than 10", errs[2].Message)
	assert.Equal(t, map[string]interface{}{"value": "10"}, errs[2].Params)

	assert.Empty(t, Validate(context.Background(), &windowRequest{}))
	assert.Equal(t, "Text is required", Validate(context.Background(), &struct {
		Text string `validate:"required"`
	}{})[0].Message)
}

func TestRouteFuncNil(t *testing.T) {
	assert.NotPanics(t, func() { RouteFunc(nil).RegisterRoutes(echo.New()) })
}

func TestAppErrorEnvelope(t *testing.T) {
	rec := serve(testServer(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), `"message":"no signal"`)
}

func TestRecoverPanics(t *testing.T) {
	rec := serve(testServer(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	s := testServer("https://dash.example")

	req := httptest.NewRequest(http.MethodOptions, "/window", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))

	req = httptest.NewRequest(http.MethodGet, "/window", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example")
	rec = serve(s, req)
	assert.Equal(t, echo.HeaderRetryAfter, rec.Header().Get(echo.HeaderAccessControlExposeHeaders))

	req = httptest.NewRequest(http.MethodGet, "/window", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
