package middleware

import (
	"log/slog"

	"github.com/m3rciful/redistbot/core/logger"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions names the single operator account. AdminID 0 locks
// admin commands for everyone.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allows(u *tele.User) bool {
	return o.AdminID != 0 && u != nil && u.ID == o.AdminID
}

// AdminOnlyMiddleware passes only the operator's updates to next. Others
// are logged and handed to OnReject, or dropped when it is nil.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.allows(c.Sender()) {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.admin_only",
				slog.String("status", "denied"),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
