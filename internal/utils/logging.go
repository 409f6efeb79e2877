package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	MaxSize    = 100
	MaxBackups = 3
	MaxAge     = 28

	ServiceName = "unit_service"
)

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgCyan),
	slog.LevelInfo:  color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed),
}

// UnitHandler writes JSON records to a rotated file and mirrors a colored
// line for each record to the console. Attributes bound with WithAttrs show
// up on both.
type UnitHandler struct {
	json    slog.Handler
	console io.Writer
	bound   []string
	group   string
}

func NewUnitHandler(console io.Writer, fileWriter io.Writer, level slog.Level) *UnitHandler {
	jsonHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	})

	return &UnitHandler{
		json:    jsonHandler.WithAttrs([]slog.Attr{slog.String("service", ServiceName)}),
		console: console,
	}
}

func (h *UnitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.json.Enabled(ctx, level)
}

func (h *UnitHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.json.Handle(ctx, r); err != nil {
		return err
	}

	attrs := append([]string(nil), h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.pair(a))
		return true
	})

	line := r.Message
	if len(attrs) > 0 {
		line += " " + strings.Join(attrs, " ")
	}

	c, ok := levelColors[r.Level]
	if !ok {
		c = color.New(color.FgWhite)
	}

	_, err := fmt.Fprintf(h.console, "%s %s %s\n",
		color.New(color.FgBlue).Sprint(r.Time.Format("2006-01-02 15:04:05.000")),
		c.Sprintf("%-6s", r.Level.String()),
		line,
	)
	return err
}

func (h *UnitHandler) pair(a slog.Attr) string {
	return fmt.Sprintf("%s%s=%v", h.group, a.Key, a.Value)
}

func (h *UnitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := append([]string(nil), h.bound...)
	for _, a := range attrs {
		bound = append(bound, h.pair(a))
	}

	return &UnitHandler{json: h.json.WithAttrs(attrs), console: h.console, bound: bound, group: h.group}
}

func (h *UnitHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &UnitHandler{json: h.json.WithGroup(name), console: h.console, bound: h.bound, group: h.group + name + "."}
}

func SetupLogger(logFilePath string, level slog.Level) (*slog.Logger, error) {
	if logFilePath == "" {
		return nil, errors.New("log file path is empty")
	}

	logFile := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    MaxSize,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAge,
		Compress:   true,
	}

	return slog.New(NewUnitHandler(os.Stdout, logFile, level)), nil
}

func requestLevel(status int, path string) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/metrics" || strings.HasPrefix(path, "/api/public/"):
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

// Middleware logs one line per request, tagged with the chi request id and
// the matched route.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			requestID := middleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "unknown"
			}

			next.ServeHTTP(ww, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			logger.With(slog.String("request_id", requestID)).Log(r.Context(), requestLevel(ww.Status(), r.URL.Path), "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
