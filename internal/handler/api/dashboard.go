package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	models "EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	domsvc "EconDash/internal/domain/service"
	"EconDash/internal/service/metrics"
	"EconDash/internal/services/presentation"
	"EconDash/internal/services/timeseries"
	xhttp "EconDash/pkg/http"
	xlogger "EconDash/pkg/logger"
	"EconDash/pkg/util"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"first": func(ps []models.ChartPoint) models.ChartPoint { return ps[0] },
	"last":  func(ps []models.ChartPoint) models.ChartPoint { return ps[len(ps)-1] },
}).ParseFS(templateFS, "templates/dashboard.html"))

// DashboardHandler serves the dashboard page and its JSON API.
type DashboardHandler struct {
	logger *xlogger.Logger
	dash   domsvc.DashboardRenderer
	title  string
}

func NewDashboardHandler(logger *xlogger.Logger, dash domsvc.DashboardRenderer, title string) *DashboardHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if title == "" {
		title = "Economic Indicators Dashboard"
	}
	metrics.Register()
	return &DashboardHandler{logger: logger.With("dashboard_http"), dash: dash, title: title}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Page)
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/dashboard", h.Dashboard)
	g.GET("/range", h.Range)
}

// Dashboard renders the selected range as JSON.
func (h *DashboardHandler) Dashboard(c echo.Context) error {
	start := time.Now()
	defer observe("dashboard", start)

	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues("dashboard", "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := parseRange(req)
	if err != nil {
		return h.fail(c, "dashboard", err)
	}

	out, err := h.dash.Render(c.Request().Context(), r)
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, out)
}

// Range returns the widest range a caller may select.
func (h *DashboardHandler) Range(c echo.Context) error {
	start := time.Now()
	defer observe("range", start)

	r, err := h.dash.Bounds(c.Request().Context())
	if err != nil {
		return h.fail(c, "range", err)
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *DashboardHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type pageData struct {
	Title       string
	Start       string
	End         string
	Min         string
	Max         string
	Error       string
	Output      *models.RenderedOutput
	ChartWidth  int
	ChartHeight int
}

// Page renders the HTML dashboard. Failures are shown inline with the
// matching status code.
func (h *DashboardHandler) Page(c echo.Context) error {
	start := time.Now()
	defer observe("page", start)

	data := pageData{
		Title:       h.title,
		ChartWidth:  presentation.ChartWidth,
		ChartHeight: presentation.ChartHeight,
	}
	req := &models.DashboardRequest{}
	status := http.StatusOK
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues("page", "ERR_VALIDATION").Inc()
		status = http.StatusBadRequest
		data.Error = validationMessage(verr)
		return h.renderPage(c, status, data)
	}
	data.Start, data.End = req.Start, req.End

	r, err := parseRange(req)
	if err == nil {
		var out models.RenderedOutput
		out, err = h.dash.Render(c.Request().Context(), r)
		if err == nil {
			data.Output = &out
			data.Start = util.FormatDate(out.Range.Start)
			data.End = util.FormatDate(out.Range.End)
			data.Min = util.FormatDate(out.Bounds.Start)
			data.Max = util.FormatDate(out.Bounds.End)
		}
	}
	if err != nil {
		appErr := toAppError(err)
		h.logFailure("page", appErr)
		status = appErr.Status
		data.Error = appErr.Message
	}
	return h.renderPage(c, status, data)
}

func (h *DashboardHandler) renderPage(c echo.Context, status int, data pageData) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("page template error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func (h *DashboardHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	h.logFailure(endpoint, appErr)
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *DashboardHandler) logFailure(endpoint string, appErr *xhttp.AppError) {
	metrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("dashboard request failed",
			xlogger.String("endpoint", endpoint),
			xlogger.String("code", appErr.Code),
			xlogger.Error(appErr),
		)
		return
	}
	h.logger.Warn("dashboard request rejected",
		xlogger.String("endpoint", endpoint),
		xlogger.String("code", appErr.Code),
		xlogger.String("reason", appErr.Error()),
	)
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// parseRange turns request dates into a DateRange. Empty dates stay zero.
func parseRange(req *models.DashboardRequest) (models.DateRange, error) {
	var r models.DateRange
	var err error
	if req.Start != "" {
		if r.Start, err = util.ParseDate(req.Start); err != nil {
			return r, xhttp.NewAppError("ERR_INVALID_RANGE", "start", err.Error(), http.StatusBadRequest)
		}
	}
	if req.End != "" {
		if r.End, err = util.ParseDate(req.End); err != nil {
			return r, xhttp.NewAppError("ERR_INVALID_RANGE", "end", err.Error(), http.StatusBadRequest)
		}
	}
	return r, nil
}

// toAppError maps pipeline errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domrepo.ErrSourceUnavailable):
		return xhttp.ServiceUnavailableError("ERR_SOURCE_UNAVAILABLE", "a data source is unavailable").WithError(err)
	case errors.Is(err, timeseries.ErrNoOverlap):
		return xhttp.UnprocessableError("ERR_NO_OVERLAP", "the input series share no common dates").WithError(err)
	case errors.Is(err, timeseries.ErrInvalidRange):
		return xhttp.NewAppError("ERR_INVALID_RANGE", "", "the selected date range is invalid", http.StatusBadRequest).WithError(err)
	case errors.Is(err, timeseries.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough data in the selected range").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "rendering timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("failed to render dashboard").WithError(err)
	}
}

func validationMessage(verr interface{}) string {
	if errs, ok := verr.([]xhttp.ValidationError); ok && len(errs) > 0 {
		return errs[0].Message
	}
	return "invalid request"
}
