package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/redistbot/core/logger"
	tg "github.com/m3rciful/redistbot/core/telegram"
	"github.com/m3rciful/redistbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate for AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command and alias to its handler.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	var routes []tg.Route
	for _, cmd := range reg.Commands() {
		h := commandHandler(normalizeHandlerName(cmd.Name), cmd.Handler)
		if cmd.AdminOnly {
			h = admin(h)
		}
		routes = append(routes, tg.Route{Endpoint: cmd.Name, Handler: h})
		for _, alias := range cmd.Aliases {
			routes = append(routes, tg.Route{Endpoint: "/" + normalizeHandlerName(alias), Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "routes"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}

func commandHandler(name string, inner tele.HandlerFunc) tele.HandlerFunc {
	h := func(c tele.Context) error {
		return summarize(c, name, time.Now(), func() error { return inner(c) })
	}
	return middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))
}
