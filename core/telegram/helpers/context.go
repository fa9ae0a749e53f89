package helpers

import (
	"context"

	"github.com/m3rciful/redistbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ridKey       = "rid"
	updateCtxKey = "update_ctx"
)

// Identity returns the update, chat and sender ids carried by c. Missing
// parts are zero.
func Identity(c tele.Context) (updateID int, chatID, userID int64) {
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	return updateID, chatID, userID
}

// NewContext derives the logging context for the update in c (rid plus
// update, chat and user ids) and caches it on c for later helpers.
func NewContext(c tele.Context) context.Context {
	updateID, chatID, userID := Identity(c)
	rid := logger.BuildRID(updateID, chatID, userID)
	c.Set(ridKey, rid)

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	c.Set(updateCtxKey, ctx)
	return ctx
}

// BuildContext returns the context cached on c, deriving it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(updateCtxKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return NewContext(c)
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(updateCtxKey, ctx)
	return ctx
}
