package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/redistbot/core/logger"
	"github.com/m3rciful/redistbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update IDs; an update that passes
// through more than one wrapped handler is logged once.
type receipts struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

var logged = &receipts{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

// first reports whether id is new and records it.
func (r *receipts) first(id int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.seen[id]; ok && now.Sub(at) <= r.ttl {
		return false
	}
	if len(r.seen) > 256 {
		for k, at := range r.seen {
			if now.Sub(at) > r.ttl {
				delete(r.seen, k)
			}
		}
	}
	r.seen[id] = now
	return true
}

// LoggerMiddleware opens the update's log scope (rid, ids) and, at debug
// level, logs what arrived: chat type, username, button key or text.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewContext(c)
		upd, user, chat := c.Update(), c.Sender(), c.Chat()

		if logger.TG.Enabled(ctx, slog.LevelDebug) && logged.first(upd.ID, time.Now()) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
				if upd.Message.Photo != nil {
					attrs = append(attrs, slog.Bool("photo", true))
				}
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
