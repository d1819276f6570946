package api

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	models "EconDash/internal/domain/models"
	domsvc "EconDash/internal/domain/service"
	"EconDash/internal/service/metrics"
	"EconDash/internal/service/ratelimit"
	xhttp "EconDash/pkg/http"
	xlogger "EconDash/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsReadLimit    = 4096
	wsWriteTimeout = 10 * time.Second
)

// Frame is one server message on the dashboard socket.
type Frame struct {
	Type  string                 `json:"type"` // dashboard or error
	Data  *models.RenderedOutput `json:"data,omitempty"`
	Error interface{}            `json:"error,omitempty"`
}

// DashboardWSHandler re-renders the dashboard for every range a client
// sends. Each connection has its own token bucket.
type DashboardWSHandler struct {
	logger    *xlogger.Logger
	dash      domsvc.DashboardRenderer
	limiter   *ratelimit.Limiter
	burst     float64
	perSecond float64
	upgrader  websocket.Upgrader
	conns     atomic.Int64
}

func NewDashboardWSHandler(logger *xlogger.Logger, dash domsvc.DashboardRenderer, limiter *ratelimit.Limiter, burst, perSecond float64) *DashboardWSHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}
	metrics.Register()
	return &DashboardWSHandler{
		logger:    logger.With("dashboard_ws"),
		dash:      dash,
		limiter:   limiter,
		burst:     burst,
		perSecond: perSecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *DashboardWSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

func (h *DashboardWSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	key := fmt.Sprintf("%s#%d", c.RealIP(), h.conns.Add(1))
	defer h.limiter.Forget(key)
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	conn.SetReadLimit(wsReadLimit)
	h.logger.Debug("websocket connected", xlogger.String("conn", key))

	ctx := c.Request().Context()
	for {
		var req models.DashboardRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", xlogger.String("conn", key), xlogger.Error(err))
			}
			return nil
		}

		frame := h.handle(c, key, &req)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Warn("websocket write failed", xlogger.String("conn", key), xlogger.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (h *DashboardWSHandler) handle(c echo.Context, key string, req *models.DashboardRequest) Frame {
	start := time.Now()
	defer observe("ws", start)

	if !h.limiter.Allow(key, h.burst, h.perSecond) {
		metrics.EndpointErrors.WithLabelValues("ws", "ERR_RATE_LIMITED").Inc()
		return Frame{Type: "error", Error: xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests)}
	}
	if verrs := xhttp.ValidateStruct(req); verrs != nil {
		metrics.EndpointErrors.WithLabelValues("ws", "ERR_VALIDATION").Inc()
		return Frame{Type: "error", Error: verrs}
	}
	r, err := parseRange(req)
	if err == nil {
		var out models.RenderedOutput
		if out, err = h.dash.Render(c.Request().Context(), r); err == nil {
			return Frame{Type: "dashboard", Data: &out}
		}
	}
	appErr := toAppError(err)
	metrics.EndpointErrors.WithLabelValues("ws", appErr.Code).Inc()
	h.logger.Warn("websocket render failed", xlogger.String("conn", key), xlogger.String("code", appErr.Code), xlogger.Error(err))
	return Frame{Type: "error", Error: appErr}
}
