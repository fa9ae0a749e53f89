package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/redistbot/core/telegram"
	"github.com/m3rciful/redistbot/core/telegram/callbacks"
	"github.com/m3rciful/redistbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises callback routing.
type CallbackOptions struct {
	// NotFound overrides the registry's handler for unknown keys.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique key.
// Handlers answer the callback query themselves; when no handler exists the
// press is still answered so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(cb)
		name := "callback." + normalizeHandlerName(key)
		keyAttr := slog.String("cb_key", key)

		if h, ok := reg.Callback(key); ok {
			return summarize(c, name, start, func() error { return h(c) }, keyAttr)
		}

		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		if fallback == nil {
			fallback = func(c tele.Context) error { return c.Respond() }
		}
		return summarize(c, name, start, func() error { return fallback(c) },
			keyAttr, slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.LoggerMiddleware(middleware.RecoverMiddleware(handler)),
	}
}
