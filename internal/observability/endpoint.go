package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/eventrec/internal/logging"
)

// StatusFunc returns a JSON serializable snapshot of the recorder.
type StatusFunc func() any

// Endpoint serves /metrics, /health and /api/v1/status.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	listener      net.Listener
	started       time.Time
	logger        *slog.Logger
	done          chan struct{}
}

// NewEndpoint builds the HTTP endpoint. status may be nil, in which case the
// status route reports only uptime.
func NewEndpoint(listenAddress string, m *Metrics, status StatusFunc) *Endpoint {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Use(echomw.Recover())

	ep := &Endpoint{
		echo:          e,
		listenAddress: listenAddress,
		started:       time.Now(),
		logger:        logging.ForService("observability"),
		done:          make(chan struct{}),
	}

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/health", ep.handleHealth)
	e.GET("/api/v1/status", func(c echo.Context) error {
		body := map[string]any{
			"uptime_seconds": time.Since(ep.started).Seconds(),
		}
		if status != nil {
			body["recorder"] = status()
		}
		return c.JSON(http.StatusOK, body)
	})
	return ep
}

func (ep *Endpoint) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Handler returns the routed handler, mainly for tests.
func (ep *Endpoint) Handler() http.Handler {
	return ep.echo
}

// Start binds the listen address and serves in the background.
func (ep *Endpoint) Start() error {
	ln, err := net.Listen("tcp", ep.listenAddress)
	if err != nil {
		return fmt.Errorf("observability endpoint listen on %s: %w", ep.listenAddress, err)
	}
	ep.listener = ln
	ep.echo.Listener = ln

	go func() {
		defer close(ep.done)
		ep.logger.Info("observability endpoint starting", "address", ln.Addr().String())
		if err := ep.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ep.logger.Error("observability endpoint error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address after Start.
func (ep *Endpoint) Addr() string {
	if ep.listener == nil {
		return ep.listenAddress
	}
	return ep.listener.Addr().String()
}

// Shutdown stops the server and waits for the serve goroutine to exit.
func (ep *Endpoint) Shutdown(ctx context.Context) error {
	if ep.listener == nil {
		return nil
	}
	ep.logger.Info("stopping observability endpoint")
	err := ep.echo.Shutdown(ctx)
	select {
	case <-ep.done:
	case <-ctx.Done():
	}
	return err
}
