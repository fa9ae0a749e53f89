package bot

import (
	"context"
	"errors"

	"github.com/m3rciful/redistbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/internal/calendar"
	"github.com/m3rciful/redistbot/internal/claims"
	"github.com/m3rciful/redistbot/internal/dialog"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/negotiation"

	tele "gopkg.in/telebot.v4"
)

func decisionError(l *listing.Listing, err error) string {
	switch {
	case errors.Is(err, listing.ErrInsufficientStock):
		return insufficientCard(l)
	case errors.Is(err, listing.ErrNotFound):
		return textListingMissing
	case errors.Is(err, negotiation.ErrNotFound):
		return textNotPending
	case errors.Is(err, claims.ErrNotAuthorized):
		return textNotAuthorized
	case errors.Is(err, claims.ErrInvalidTransition):
		return textWrongState
	}
	return "⚠️ Something went wrong. Please try again."
}

// refuse answers a failed decision. Authorization and state errors leave
// the card untouched; everything else ended the negotiation, so the card
// is replaced.
func (a *App) refuse(c tele.Context, err error, out claims.Outcome) error {
	if errors.Is(err, claims.ErrNotAuthorized) || errors.Is(err, claims.ErrInvalidTransition) {
		respond(c, decisionError(out.Listing, err))
		return nil
	}
	respond(c, "")
	return tghelpers.EditHTML(c, decisionError(out.Listing, err))
}

func (a *App) onApprove(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := a.svc.Approve(ctx, userID(c), callbacks.CallbackPayload(c))
	if err != nil {
		if errors.Is(err, listing.ErrInsufficientStock) && out.Negotiation != nil && out.Listing != nil {
			a.channel.Direct(ctx, out.Negotiation.ClaimantID, claimRefused(out.Listing.Item), nil)
		}
		return a.refuse(c, err, out)
	}
	respond(c, "")
	a.settled(ctx, out)
	a.channel.Direct(ctx, out.Negotiation.ClaimantID, claimApproved(out.Negotiation, out.Listing), nil)
	return tghelpers.EditHTML(c, approvedCard(out.Negotiation, out.Listing))
}

func (a *App) onReject(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := a.svc.Reject(ctx, userID(c), callbacks.CallbackPayload(c))
	if err != nil {
		return a.refuse(c, err, out)
	}
	respond(c, "")
	a.channel.Direct(ctx, out.Negotiation.ClaimantID, claimRejected(out.Listing.Item), nil)
	return tghelpers.EditHTML(c, rejectedCard(out.Negotiation))
}

// onSuggest starts the reschedule dialog for the poster. The negotiation
// itself changes state only once the new time is complete.
func (a *App) onSuggest(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid := userID(c)
	id := callbacks.CallbackPayload(c)

	n, err := a.svc.Negotiation(ctx, id)
	switch {
	case err != nil:
		respond(c, "")
		return tghelpers.EditHTML(c, textNotPending)
	case n.PosterID != uid:
		respond(c, textNotAuthorized)
		return nil
	case n.State != negotiation.StateRequested:
		respond(c, textWrongState)
		return nil
	}
	respond(c, "")
	a.sessions.Set(uid, dialog.NewReschedule(id))
	return tghelpers.SendHTML(c, textAskNewDate, calendar.Keyboard(a.now()))
}

func (a *App) onAccept(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := a.svc.Accept(ctx, userID(c), callbacks.CallbackPayload(c))
	if errors.Is(err, listing.ErrInsufficientStock) && out.Negotiation != nil {
		// Stock went to another claim while the proposal was open.
		a.channel.Direct(ctx, out.Negotiation.PosterID, proposalLapsed(out.Negotiation), nil)
		respond(c, "")
		return tghelpers.EditHTML(c, acceptRefusedCard(out.Listing))
	}
	if err != nil {
		return a.refuse(c, err, out)
	}
	respond(c, "")
	a.settled(ctx, out)
	a.channel.Direct(ctx, out.Negotiation.PosterID, proposalAccepted(out.Negotiation), nil)
	return tghelpers.EditHTML(c, pickupConfirmed(out.Negotiation, out.Listing))
}

func (a *App) onDecline(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out, err := a.svc.Decline(ctx, userID(c), callbacks.CallbackPayload(c))
	if err != nil {
		return a.refuse(c, err, out)
	}
	respond(c, "")
	a.channel.Direct(ctx, out.Negotiation.PosterID, proposalDeclined(out.Negotiation), nil)
	return tghelpers.EditHTML(c, textDeclined)
}

// settled republishes the listing after a claim; archival announcements go
// out only from the decision that archived it.
func (a *App) settled(ctx context.Context, out claims.Outcome) {
	a.channel.Sync(ctx, out.Listing, out.Archived)
}
