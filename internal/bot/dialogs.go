package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/redistbot/core/logger"
	"github.com/m3rciful/redistbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/core/telegram/keyboard"
	"github.com/m3rciful/redistbot/internal/calendar"
	"github.com/m3rciful/redistbot/internal/claims"
	"github.com/m3rciful/redistbot/internal/dialog"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/projector"

	tele "gopkg.in/telebot.v4"
)

// InProgress reports whether the user is inside a dialog.
func (a *App) InProgress(userID int64) bool {
	return a.sessions.InProgress(userID)
}

// Handle feeds a text or photo message into the user's dialog.
func (a *App) Handle(c tele.Context) error {
	uid := userID(c)
	s, ok := a.sessions.Get(uid)
	if !ok {
		return tghelpers.SendHTML(c, textIdle)
	}

	in := dialog.Input{Text: c.Text()}
	if m := c.Message(); m != nil && m.Photo != nil {
		in.PhotoID = m.Photo.FileID
	}

	prompt, err := s.Next(in)
	if err != nil {
		return tghelpers.SendHTML(c, a.hint(s, err), cancelMarkup())
	}
	return a.advance(c, s, prompt)
}

// advance acts on the prompt a session returned after a successful step.
func (a *App) advance(c tele.Context, s dialog.Session, p dialog.Prompt) error {
	switch p {
	case dialog.PromptQuantity:
		return tghelpers.SendHTML(c, textAskQuantity, cancelMarkup())
	case dialog.PromptSize:
		return tghelpers.SendHTML(c, textAskSize, cancelMarkup())
	case dialog.PromptExpiry:
		return tghelpers.SendHTML(c, textAskExpiry, calendar.Keyboard(a.now()))
	case dialog.PromptLocation:
		return tghelpers.SendHTML(c, textAskLocation, cancelMarkup())
	case dialog.PromptPhoto:
		return tghelpers.SendHTML(c, textAskPhoto, cancelMarkup())
	case dialog.PromptConfirm:
		sub := s.(*dialog.Submission)
		return tghelpers.SendHTML(c, projector.Preview(sub.Draft), keyboard.Markup(keyboard.Row{
			{Text: "✅ Post", Unique: cbPost, Data: "go"},
			keyboard.Cancel(cbCancel),
		}))
	case dialog.PromptPickup:
		return tghelpers.SendHTML(c, textAskPickup, cancelMarkup())
	case dialog.PromptClaimReady:
		return a.submitClaim(c, s.(*dialog.Claim))
	case dialog.PromptRescheduleTime:
		return tghelpers.SendHTML(c, textAskNewTime, cancelMarkup())
	case dialog.PromptRescheduleReady:
		return a.propose(c, s.(*dialog.Reschedule))
	}
	return nil
}

func (a *App) hint(s dialog.Session, err error) string {
	switch {
	case errors.Is(err, dialog.ErrQuantity):
		return "⚠️ Please enter a positive whole number."
	case errors.Is(err, dialog.ErrExceedsRemaining):
		if cl, ok := s.(*dialog.Claim); ok {
			return fmt.Sprintf("⚠️ Only %d left. How many would you like?", cl.Remaining)
		}
	case errors.Is(err, dialog.ErrDate):
		return "⚠️ Please pick a day on the calendar or type a date like 30/11/26."
	case errors.Is(err, dialog.ErrClock):
		return "⚠️ Please type a time like 14:30."
	case errors.Is(err, dialog.ErrPhoto):
		return textAskPhoto
	case errors.Is(err, dialog.ErrEmpty):
		return "⚠️ Please type an answer."
	}
	return textUseButtons
}

// submitClaim opens the negotiation and sends the poster the request card.
func (a *App) submitClaim(c tele.Context, cl *dialog.Claim) error {
	ctx := tghelpers.BuildContext(c)
	uid := userID(c)
	n, l, err := a.svc.Request(ctx, claims.RequestInput{
		ListingID:    cl.ListingID,
		ClaimantID:   uid,
		ClaimantName: displayName(c.Sender()),
		Quantity:     cl.Quantity,
		PickupTime:   cl.PickupTime,
	})
	switch {
	case errors.Is(err, listing.ErrInsufficientStock) && l != nil:
		cl.Step, cl.Remaining = dialog.ClaimQuantity, l.Remaining
		return tghelpers.SendHTML(c, fmt.Sprintf("⚠️ Only %d left. How many would you like?", l.Remaining), cancelMarkup())
	case errors.Is(err, claims.ErrListingArchived):
		a.sessions.Clear(uid)
		return tghelpers.SendHTML(c, textFullyClaimed)
	case errors.Is(err, listing.ErrNotFound):
		a.sessions.Clear(uid)
		return tghelpers.SendHTML(c, textGone)
	case err != nil:
		a.sessions.Clear(uid)
		return err
	}

	a.sessions.Clear(uid)
	a.channel.Direct(ctx, n.PosterID, claimRequest(n, l), keyboard.Markup(
		keyboard.Row{
			{Text: "✅ Approve", Unique: cbApprove, Data: n.ID},
			{Text: "❌ Reject", Unique: cbReject, Data: n.ID},
		},
		keyboard.Row{{Text: "🕓 Suggest New Date/Time", Unique: cbSuggest, Data: n.ID}},
	))
	return tghelpers.SendHTML(c, textRequestSent)
}

// propose records the reschedule and asks the claimant to answer it.
func (a *App) propose(c tele.Context, r *dialog.Reschedule) error {
	ctx := tghelpers.BuildContext(c)
	uid := userID(c)
	a.sessions.Clear(uid)

	out, err := a.svc.ProposeReschedule(ctx, uid, r.NegotiationID, r.Proposed())
	if err != nil {
		return tghelpers.SendHTML(c, decisionError(out.Listing, err))
	}
	a.channel.Direct(ctx, out.Negotiation.ClaimantID, proposal(out.Negotiation, out.Listing), keyboard.Markup(keyboard.Row{
		{Text: "✅ Accept", Unique: cbAccept, Data: out.Negotiation.ID},
		{Text: "❌ Decline", Unique: cbDecline, Data: out.Negotiation.ID},
	}))
	return tghelpers.SendHTML(c, textProposalSent)
}

// onCalendar handles navigation and day picks for the session's calendar.
func (a *App) onCalendar(c tele.Context) error {
	click, err := calendar.Parse(callbacks.CallbackPayload(c))
	if err != nil {
		respond(c, textExpired)
		return nil
	}
	if click.Action == calendar.Noop {
		respond(c, textPickDay)
		return nil
	}

	s, ok := a.sessions.Get(userID(c))
	if !ok {
		respond(c, textExpired)
		return nil
	}
	respond(c, "")

	if click.Action == calendar.Navigate {
		return c.Edit(calendar.Keyboard(click.Month))
	}

	prompt, err := s.Pick(click.Day)
	if err != nil {
		return nil
	}
	switch sess := s.(type) {
	case *dialog.Submission:
		if err := tghelpers.EditHTML(c, "✅ Expiry date: "+sess.Draft.Expiry); err != nil {
			return err
		}
	case *dialog.Reschedule:
		if err := tghelpers.EditHTML(c, "✅ Date selected: "+sess.Date); err != nil {
			return err
		}
	}
	return a.advance(c, s, prompt)
}

// onPost publishes the confirmed draft: channel post first, then the
// listing keyed by the post id, then the post is re-rendered with its
// claim button.
func (a *App) onPost(c tele.Context) error {
	uid := userID(c)
	s, ok := a.sessions.Get(uid)
	sub, isSub := s.(*dialog.Submission)
	if !ok || !isSub || !sub.Ready() {
		respond(c, textExpired)
		return nil
	}
	respond(c, "")
	ctx := tghelpers.BuildContext(c)

	postID, err := a.channel.Publish(ctx, sub.Draft)
	if err != nil {
		return tghelpers.EditHTML(c, textPostFailed, keyboard.Markup(keyboard.Row{
			{Text: "✅ Post", Unique: cbPost, Data: "go"},
			keyboard.Cancel(cbCancel),
		}))
	}
	a.sessions.Clear(uid)

	l, err := a.svc.Publish(ctx, sub.Draft, postID)
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelError, "listing.publish",
			slog.String("status", "fail"),
			slog.Int64("post_id", postID),
			slog.String("err", err.Error()),
		)
		return tghelpers.EditHTML(c, "⚠️ The post went out but could not be recorded. Please contact the administrator.")
	}
	a.channel.Sync(ctx, l, false)
	return tghelpers.EditHTML(c, textPosted)
}
