package bot

import (
	"errors"
	"log/slog"

	"github.com/m3rciful/redistbot/core/logger"
	"github.com/m3rciful/redistbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/core/telegram/keyboard"
	"github.com/m3rciful/redistbot/internal/claims"
	"github.com/m3rciful/redistbot/internal/dialog"
	"github.com/m3rciful/redistbot/internal/projector"

	tele "gopkg.in/telebot.v4"
)

func cancelMarkup() *tele.ReplyMarkup {
	return keyboard.Markup(keyboard.Row{keyboard.Cancel(cbCancel)})
}

func (a *App) menu() *tele.ReplyMarkup {
	top := keyboard.Row{{Text: "📦 Donate Items", Unique: cbHelp, Data: "newitem"}}
	if link := projector.ChannelLink(a.cfg.Telegram.Channel); link != "" {
		top = append(top, keyboard.Link("🤝 Claim Items", link))
	}
	return keyboard.Markup(top, keyboard.Row{{Text: "❓ Instructions", Unique: cbHelp, Data: "info"}})
}

// onStart shows the menu, or enters the claim dialog for a claim_<id> payload.
func (a *App) onStart(c tele.Context) error {
	if id, ok := projector.ParseClaimToken(c.Message().Payload); ok {
		return a.beginClaim(c, id)
	}
	return tghelpers.SendHTML(c, textWelcome, a.menu())
}

func (a *App) beginClaim(c tele.Context, id int64) error {
	ctx := tghelpers.BuildContext(c)
	l, err := a.svc.Claimable(id)
	switch {
	case errors.Is(err, claims.ErrListingArchived):
		return tghelpers.SendHTML(c, textFullyClaimed)
	case err != nil:
		return tghelpers.SendHTML(c, textGone)
	}
	a.sessions.Set(userID(c), dialog.NewClaim(l))
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "dialog.begin",
		slog.String("status", "ok"),
		slog.String("kind", string(dialog.KindClaim)),
		slog.Int64("listing_id", id),
	)
	return tghelpers.SendHTML(c, claimIntro(l), cancelMarkup())
}

func (a *App) beginSubmission(c tele.Context) error {
	u := c.Sender()
	name := displayName(u)
	if u != nil && u.Username != "" {
		name = u.Username
	}
	a.sessions.Set(userID(c), dialog.NewSubmission(userID(c), name))
	logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelDebug, "dialog.begin",
		slog.String("status", "ok"),
		slog.String("kind", string(dialog.KindSubmission)),
	)
	return tghelpers.SendHTML(c, textAskItem, cancelMarkup())
}

func (a *App) onNewItem(c tele.Context) error {
	return a.beginSubmission(c)
}

func (a *App) onInstructions(c tele.Context) error {
	return tghelpers.SendHTML(c, textInstructions)
}

// onCancel drops whatever dialog the user is in. Nothing from it is kept.
func (a *App) onCancel(c tele.Context) error {
	a.sessions.Clear(userID(c))
	return tghelpers.SendHTML(c, textCancelled, keyboard.Remove())
}

func (a *App) onCancelButton(c tele.Context) error {
	a.sessions.Clear(userID(c))
	respond(c, "")
	return tghelpers.EditHTML(c, textCancelled)
}

func (a *App) onListings(c tele.Context) error {
	return tghelpers.SendHTML(c, openListings(a.store.List()))
}

func (a *App) onHelp(c tele.Context) error {
	respond(c, "")
	switch callbacks.CallbackPayload(c) {
	case "newitem":
		return a.beginSubmission(c)
	default:
		return a.onInstructions(c)
	}
}
