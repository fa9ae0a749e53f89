// Package delivery puts projected listings in front of users: the channel
// post, the one-time archival announcements and direct messages.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/redistbot/core/logger"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/core/telegram/keyboard"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/metrics"
	"github.com/m3rciful/redistbot/internal/projector"

	tele "gopkg.in/telebot.v4"
)

// Bot is the part of *tele.Bot delivery needs.
type Bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditCaption(msg tele.Editable, caption string, opts ...interface{}) (*tele.Message, error)
}

// ChatResolver looks up a public chat by its @username.
type ChatResolver interface {
	ChatByUsername(name string) (*tele.Chat, error)
}

// Variant is one way of editing a channel post.
type Variant string

const (
	EditCaption Variant = "caption"
	EditText    Variant = "text"
)

// Variants returns the edit attempts for l in the order they are tried.
// Posts with a photo carry their text as a caption.
func Variants(l *listing.Listing) []Variant {
	if l.PhotoID != "" {
		return []Variant{EditCaption, EditText}
	}
	return []Variant{EditText, EditCaption}
}

// ResolveChannel turns "@name" or a numeric id into a chat id.
func ResolveChannel(r ChatResolver, channel string) (int64, error) {
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return id, nil
	}
	if r == nil {
		return 0, fmt.Errorf("resolve channel %q: no resolver", channel)
	}
	chat, err := r.ChatByUsername(channel)
	if err != nil {
		return 0, fmt.Errorf("resolve channel %q: %w", channel, err)
	}
	return chat.ID, nil
}

// Channel delivers to the broadcast channel and to individual users.
type Channel struct {
	bot         Bot
	chatID      int64
	botUsername string
	metrics     *metrics.Metrics
}

// NewChannel returns a Channel posting to chatID. botUsername builds claim links.
func NewChannel(bot Bot, chatID int64, botUsername string, m *metrics.Metrics) *Channel {
	return &Channel{bot: bot, chatID: chatID, botUsername: botUsername, metrics: m}
}

func htmlOpts(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup, DisableWebPagePreview: true}
}

// Publish posts the first version of a listing and returns the post id.
func (ch *Channel) Publish(ctx context.Context, d listing.Draft) (int64, error) {
	text := projector.Post(d)
	var what interface{} = text
	if d.PhotoID != "" {
		what = &tele.Photo{File: tele.File{FileID: d.PhotoID}, Caption: text}
	}
	msg, err := ch.bot.Send(tele.ChatID(ch.chatID), what, htmlOpts(nil))
	ch.metrics.Delivery("publish", err)
	if err != nil {
		ch.log(ctx, slog.LevelError, "channel.publish", err)
		return 0, fmt.Errorf("publish to channel: %w", err)
	}
	ch.log(ctx, slog.LevelInfo, "channel.publish", nil,
		slog.Int("post_id", msg.ID),
		slog.Bool("photo", d.PhotoID != ""),
	)
	return int64(msg.ID), nil
}

// Render replaces the channel post of l with its current projection.
// Variants are tried in order; "message is not modified" counts as done.
func (ch *Channel) Render(ctx context.Context, l *listing.Listing) (projector.View, error) {
	view := projector.Project(l, ch.botUsername)
	post := tele.StoredMessage{MessageID: strconv.FormatInt(l.ID, 10), ChatID: ch.chatID}

	var markup *tele.ReplyMarkup
	if len(view.Buttons) > 0 {
		row := make(keyboard.Row, 0, len(view.Buttons))
		for _, b := range view.Buttons {
			row = append(row, keyboard.Link(b.Text, b.URL))
		}
		markup = keyboard.Markup(row)
	}

	var errs []error
	for _, v := range Variants(l) {
		var err error
		switch v {
		case EditCaption:
			_, err = ch.bot.EditCaption(post, view.Text, htmlOpts(markup))
		case EditText:
			_, err = ch.bot.Edit(post, view.Text, htmlOpts(markup))
		}
		if err == nil || NotModified(err) {
			ch.metrics.Delivery("render", nil)
			ch.log(ctx, slog.LevelDebug, "channel.render", nil,
				slog.Int64("listing_id", l.ID),
				slog.String("variant", string(v)),
				slog.Bool("archived", view.Archived),
			)
			return view, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", v, err))
	}

	err := errors.Join(errs...)
	ch.metrics.Delivery("render", err)
	ch.log(ctx, slog.LevelWarn, "channel.render", err, slog.Int64("listing_id", l.ID))
	return view, err
}

// Announce sends the one-time archival messages of view: a new channel
// message and a notice to the poster.
func (ch *Channel) Announce(ctx context.Context, view projector.View, posterID int64) {
	if !view.Archived {
		return
	}
	_, err := ch.bot.Send(tele.ChatID(ch.chatID), view.Broadcast, htmlOpts(nil))
	ch.metrics.Delivery("announce", err)
	if err != nil {
		ch.log(ctx, slog.LevelWarn, "channel.announce", err)
	}
	if posterID != 0 {
		ch.Direct(ctx, posterID, view.PosterNotice, nil)
	}
}

// Sync renders l and, when this mutation archived it, announces the archival.
func (ch *Channel) Sync(ctx context.Context, l *listing.Listing, archived bool) {
	if l == nil {
		return
	}
	view, _ := ch.Render(ctx, l)
	if archived {
		ch.Announce(ctx, view, l.PosterID)
	}
}

// Direct queues an HTML message to a user. Failures are logged, never returned.
func (ch *Channel) Direct(ctx context.Context, to int64, text string, markup *tele.ReplyMarkup) {
	opts := htmlOpts(markup)
	err := tghelpers.Enqueue(ctx, "direct", "sendMessage", func() error {
		_, err := ch.bot.Send(tele.ChatID(to), text, opts)
		ch.metrics.Delivery("direct", err)
		return err
	})
	if err != nil {
		ch.log(ctx, slog.LevelWarn, "direct.send", err, slog.Int64("to", to))
	}
}

// NotModified reports Telegram's refusal to apply an edit that changes nothing.
func NotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func (ch *Channel) log(ctx context.Context, level slog.Level, event string, err error, attrs ...slog.Attr) {
	head := []slog.Attr{slog.String("status", logger.Status(err))}
	if err != nil {
		head = append(head, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.Delivery, level, event, append(head, attrs...)...)
}
