// Package bot wires Telegram updates to the claims service, the dialogs and
// channel delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/redistbot/core/config"
	"github.com/m3rciful/redistbot/core/logger"
	tg "github.com/m3rciful/redistbot/core/telegram"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/core/telegram/router"
	"github.com/m3rciful/redistbot/core/telegram/sender"
	"github.com/m3rciful/redistbot/core/telegram/state"
	"github.com/m3rciful/redistbot/internal/calendar"
	"github.com/m3rciful/redistbot/internal/claims"
	"github.com/m3rciful/redistbot/internal/delivery"
	"github.com/m3rciful/redistbot/internal/dialog"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/metrics"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbHelp    = "help"
	cbPost    = "post"
	cbCancel  = "cancel"
	cbApprove = "approve"
	cbReject  = "reject"
	cbSuggest = "suggest"
	cbAccept  = "accept"
	cbDecline = "decline"
)

// Deps are the collaborators of App.
type Deps struct {
	Config   *config.Config
	Service  *claims.Service
	Store    *listing.Store
	Metrics  *metrics.Metrics
	Sessions state.Store[dialog.Session]
	Now      func() time.Time
}

// App owns the Telegram handlers.
type App struct {
	cfg      *config.Config
	svc      *claims.Service
	store    *listing.Store
	metrics  *metrics.Metrics
	sessions state.Store[dialog.Session]
	now      func() time.Time
	channel  *delivery.Channel
}

// New builds an App. The delivery channel is attached when the bot starts.
func New(d Deps) *App {
	a := &App{
		cfg:      d.Config,
		svc:      d.Service,
		store:    d.Store,
		metrics:  d.Metrics,
		sessions: d.Sessions,
		now:      d.Now,
	}
	if a.sessions == nil {
		a.sessions = state.NewMemory[dialog.Session]()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Attach sets the channel used for posts and direct messages.
func (a *App) Attach(ch *delivery.Channel) {
	a.channel = ch
}

// Registry builds the command and callback registry.
func (a *App) Registry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	cmds := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Handler: a.onStart, Description: "Show main menu"}},
		{"/newitem", tg.Command{Handler: a.onNewItem, Description: "Donate an excess item"}},
		{"/instructions", tg.Command{Handler: a.onInstructions, Description: "How the bot works", Aliases: []string{"help"}}},
		{"/cancel", tg.Command{Handler: a.onCancel, Description: "Cancel current action"}},
		{"/listings", tg.Command{Handler: a.onListings, Description: "Open listings", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return nil, err
		}
	}

	handlers := map[string]tele.HandlerFunc{
		cbHelp:          a.onHelp,
		cbPost:          a.onPost,
		cbCancel:        a.onCancelButton,
		calendar.Unique: a.onCalendar,
		cbApprove:       a.onApprove,
		cbReject:        a.onReject,
		cbSuggest:       a.onSuggest,
		cbAccept:        a.onAccept,
		cbDecline:       a.onDecline,
	}
	for key, h := range handlers {
		if err := reg.RegisterCallback(key, h); err != nil {
			return nil, err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: textExpired})
	})
	reg.SetPhotoFallback(func(c tele.Context) error {
		return tghelpers.SendHTML(c, textUnexpectedPhoto)
	})
	return reg, nil
}

// RunOptions assembles everything tg.RunTelegram needs.
func (a *App) RunOptions() (tg.RunOptions, error) {
	if a.cfg == nil {
		return tg.RunOptions{}, fmt.Errorf("bot: nil config")
	}
	reg, err := a.Registry()
	if err != nil {
		return tg.RunOptions{}, fmt.Errorf("bot: registry: %w", err)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error { return tghelpers.SendHTML(c, textNotAdmin) },
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{
		UnknownText:     func(c tele.Context) error { return tghelpers.SendHTML(c, textIdle) },
		UnknownDocument: func(c tele.Context) error { return tghelpers.SendHTML(c, textUnexpectedDocument) },
	})...)

	m := a.metrics
	return tg.RunOptions{
		Config:   a.cfg,
		Registry: reg,
		DispatcherOptions: sender.Options{
			// One worker keeps replies in the order handlers produced them.
			Workers:      1,
			QueueSize:    256,
			MaxRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
			OnResult: func(_ string, err error) {
				m.Delivery("queue", err)
			},
		},
		Middlewares: tg.DefaultMiddlewares(a.cfg, func(c tele.Context) error {
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
			}
			return tghelpers.SendHTML(c, textSlowDown)
		}),
		Routes:         routes,
		AllowedUpdates: []string{"message", "callback_query"},
		OnStart:        a.start,
		OnStop:         a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	chatID, err := delivery.ResolveChannel(rt.Bot, a.cfg.Telegram.Channel)
	if err != nil {
		return err
	}
	a.Attach(delivery.NewChannel(rt.Bot, chatID, rt.Bot.Me.Username, a.metrics))
	if a.metrics != nil {
		router.SetObserver(a.metrics.ObserveHandler)
	}
	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "bot.start",
		slog.String("status", "ok"),
		slog.String("bot", rt.Bot.Me.Username),
		slog.Int64("channel_id", chatID),
		slog.Int("listings", len(a.store.List())),
	)
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	router.SetObserver(nil)
	if err := a.store.Save(ctx); err != nil {
		logger.LogEvent(ctx, logger.L, slog.LevelError, "bot.stop",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "bot.stop", slog.String("status", "ok"))
	return nil
}

func userID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func respond(c tele.Context, text string) {
	_ = c.Respond(&tele.CallbackResponse{Text: text})
}
