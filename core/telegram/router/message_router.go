package router

import (
	"time"

	tg "github.com/m3rciful/redistbot/core/telegram"
	"github.com/m3rciful/redistbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialogs is the per-user conversation view the message routes need.
type Dialogs interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// TextOptions sets handlers for messages no dialog or command claims.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownPhoto    tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes text, photos and documents to the sender's open dialog
// first. Text outside a dialog may still name a command alias; anything else
// goes to the registry fallback, then to opts.
func TextRoutes(dialogs Dialogs, reg *tg.Registry, opts TextOptions) []tg.Route {
	var textFallback, photoFallback tele.HandlerFunc
	if reg != nil {
		textFallback, photoFallback = reg.TextFallback(), reg.PhotoFallback()
	}

	text := func(c tele.Context) (string, tele.HandlerFunc) {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok {
				return normalizeHandlerName(key), cmd.Handler
			}
		}
		return "unknown_text", first(textFallback, opts.UnknownText)
	}
	photo := func(tele.Context) (string, tele.HandlerFunc) {
		return "unexpected_photo", first(photoFallback, opts.UnknownPhoto)
	}
	document := func(tele.Context) (string, tele.HandlerFunc) {
		return "unexpected_document", opts.UnknownDocument
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: messageHandler(dialogs, "dialog", text)},
		{Endpoint: tele.OnPhoto, Handler: messageHandler(dialogs, "dialog_photo", photo)},
		{Endpoint: tele.OnDocument, Handler: messageHandler(dialogs, "dialog_document", document)},
	}
}

func first(hs ...tele.HandlerFunc) tele.HandlerFunc {
	for _, h := range hs {
		if h != nil {
			return h
		}
	}
	return nil
}

func messageHandler(dialogs Dialogs, dialogName string, outside func(tele.Context) (string, tele.HandlerFunc)) tele.HandlerFunc {
	h := func(c tele.Context) error {
		start := time.Now()
		if u := c.Sender(); dialogs != nil && u != nil && dialogs.InProgress(u.ID) {
			return summarize(c, dialogName, start, func() error { return dialogs.Handle(c) })
		}
		name, fallback := outside(c)
		if fallback == nil {
			logSummary(c, name, start, "skip", nil)
			return nil
		}
		return summarize(c, name, start, func() error { return fallback(c) })
	}
	return middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))
}
