package router

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/redistbot/core/logger"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/core/telegram/middleware"
	"github.com/m3rciful/redistbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// Observer receives the outcome of every routed handler.
type Observer func(handler, status string, took time.Duration)

var observer atomic.Value

// SetObserver installs the handler observer; nil disables it.
func SetObserver(fn Observer) {
	observer.Store(fn)
}

func observe(handler, status string, took time.Duration) {
	if fn, ok := observer.Load().(Observer); ok && fn != nil {
		fn(handler, status, took)
	}
}

// summarize runs fn under handler name and logs one handler.handled line.
func summarize(c tele.Context, name string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	logSummary(c, name, start, logger.Status(err), err, extras...)
	return err
}

func logSummary(c tele.Context, name string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.Replies(c)

	took := time.Since(start)
	observe(name, status, took)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_code", string(netutil.Classify(err))),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
