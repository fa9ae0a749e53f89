package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/redistbot/core/telegram/format"
	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/negotiation"

	tele "gopkg.in/telebot.v4"
)

const (
	textWelcome = "👋 <b>Welcome to the Sustainability Redistribution Bot!</b>\n\n" +
		"This bot helps staff donate and claim excess consumables easily.\n\n" +
		"Choose an option below or use these commands:\n" +
		"• /newitem – Donate items\n" +
		"• /instructions – Learn how it works"

	textInstructions = "ℹ️ <b>How It Works</b>\n\n" +
		"• Staff post excess items using /newitem.\n" +
		"• Items appear in the Redistribution Channel.\n" +
		"• Others click Claim and coordinate pickup.\n" +
		"• Donors can approve, reject, or suggest new pickup times.\n\n" +
		"This ensures efficient reuse and minimizes waste ♻️"

	textCancelled       = "❌ Cancelled. Start again with /start."
	textAskItem         = "🧾 What item are you donating?"
	textAskQuantity     = "📦 How many boxes or units are available?"
	textAskSize         = "📏 What is the size? (Type 'NA' if not applicable)"
	textAskExpiry       = "⏰ Please choose the expiry date, or type it (e.g. 30/11/26):"
	textAskLocation     = "📍 Where is the pickup location?"
	textAskPhoto        = "📸 Send a photo of the item or type 'Skip' if none."
	textAskPickup       = "🕓 When can you collect? (e.g. 10 Oct 2026, 3–5 pm)"
	textAskNewDate      = "📅 Please choose a new pickup date:"
	textAskNewTime      = "⏰ Please type the exact pickup time (e.g. 14:30):"
	textPosted          = "✅ Posted to channel!"
	textPostFailed      = "⚠️ Could not post to the channel. Please press Post again."
	textRequestSent     = "📨 Request sent to the donor for approval."
	textProposalSent    = "✅ Sent your proposed new date/time to the claimant."
	textGone            = "❌ This listing is no longer available."
	textFullyClaimed    = "❌ This listing has been fully claimed."
	textListingMissing  = "⚠️ Listing no longer exists."
	textNotPending      = "⚠️ This request is no longer pending."
	textNotAuthorized   = "Only the other party can answer this."
	textWrongState      = "This request is waiting for another answer."
	textUseButtons      = "Please use the buttons above, or /cancel."
	textPickDay         = "Select a valid day."
	textExpired         = "This button has expired."
	textIdle            = "Use /newitem to donate an item, or tap Claim on a channel post."
	textNotAdmin        = "⛔ This command is for the administrator."
	textSlowDown        = "⏳ Too many messages, please slow down."
	textNoOpenListings  = "No open listings."
	textUnexpectedPhoto = "📸 I wasn't expecting a photo. Use /newitem to donate an item."

	textUnexpectedDocument = "📎 Files aren't supported. Send item photos as pictures during /newitem."
)

// displayName renders a Telegram user the way notices address them.
func displayName(u *tele.User) string {
	if u == nil {
		return "someone"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("user %d", u.ID)
	}
	return name
}

func claimIntro(l *listing.Listing) string {
	return fmt.Sprintf("You’re claiming %s.\n\n📦 How many would you like to collect? (%d available)",
		format.Bold(l.Item), l.Remaining)
}

func claimRequest(n *negotiation.Negotiation, l *listing.Listing) string {
	return format.Lines(
		"📨 <b>Claim Request</b>\n",
		"👤 "+format.EscapeHTML(n.ClaimantName)+" wants to claim:",
		fmt.Sprintf("• <b>%d</b> of %s", n.Quantity, format.Bold(l.Item)),
		"• Collection: "+format.EscapeHTML(n.PickupTime),
	)
}

func claimApproved(n *negotiation.Negotiation, l *listing.Listing) string {
	return fmt.Sprintf("✅ Your claim for %s has been approved!\n\n📦 Quantity: <b>%d</b>\n⏰ Pickup: %s\n📍 Location: %s",
		format.Bold(l.Item), n.Quantity, format.Bold(n.AgreedTime()), format.Bold(l.Location))
}

func approvedCard(n *negotiation.Negotiation, l *listing.Listing) string {
	return fmt.Sprintf("✅ Approved claim for %s (%d× %s)",
		format.EscapeHTML(n.ClaimantName), n.Quantity, format.EscapeHTML(l.Item))
}

func claimRejected(item string) string {
	return fmt.Sprintf("❌ Your claim for %s has been rejected.", format.Bold(item))
}

func rejectedCard(n *negotiation.Negotiation) string {
	return "❌ Rejected claim for " + format.EscapeHTML(n.ClaimantName) + "."
}

func insufficientCard(l *listing.Listing) string {
	if l == nil {
		return textListingMissing
	}
	return fmt.Sprintf("⚠️ Not enough remaining stock to approve (%d left). The request was closed.", l.Remaining)
}

func claimRefused(item string) string {
	return fmt.Sprintf("❌ Your claim for %s could not be confirmed: not enough stock is left.", format.Bold(item))
}

func acceptRefusedCard(l *listing.Listing) string {
	if l == nil {
		return textListingMissing
	}
	return fmt.Sprintf("⚠️ Sorry, %s ran out before you accepted (%d left). The pickup was not booked.",
		format.Bold(l.Item), l.Remaining)
}

func proposalLapsed(n *negotiation.Negotiation) string {
	return fmt.Sprintf("⚠️ %s accepted your new timing, but only after the stock was gone. Their claim for %d was closed.",
		format.EscapeHTML(n.ClaimantName), n.Quantity)
}

func proposal(n *negotiation.Negotiation, l *listing.Listing) string {
	return format.Lines(
		"📌 <b>IMPORTANT – SAVE THIS MESSAGE</b>\n",
		"🕓 <b>Donor proposed new pickup:</b>",
		fmt.Sprintf("📦 Quantity: <b>%d</b>", n.Quantity),
		"📅 Pickup: "+format.Bold(n.ProposedTime),
		"📍 Location: "+format.Bold(l.Location),
	) + "\n\nDo you accept this proposal?"
}

func proposalAccepted(n *negotiation.Negotiation) string {
	return fmt.Sprintf("✅ %s accepted your new pickup timing:\n%s (%d boxes).",
		format.EscapeHTML(n.ClaimantName), format.EscapeHTML(n.ProposedTime), n.Quantity)
}

func pickupConfirmed(n *negotiation.Negotiation, l *listing.Listing) string {
	return fmt.Sprintf("✅ Pickup confirmed for %d of %s at %s.",
		n.Quantity, format.EscapeHTML(l.Item), format.EscapeHTML(n.ProposedTime))
}

func proposalDeclined(n *negotiation.Negotiation) string {
	return "❌ " + format.EscapeHTML(n.ClaimantName) + " declined your new timing."
}

const textDeclined = "❌ You declined the new timing. Claim cancelled."

func openListings(ls []*listing.Listing) string {
	lines := []string{"<b>Open listings</b>"}
	for _, l := range ls {
		if l.Archived() {
			continue
		}
		lines = append(lines, fmt.Sprintf("#%d %s – %d/%d · %s",
			l.ID, format.EscapeHTML(l.Item), l.Remaining, l.Quantity, format.EscapeHTML(format.OrDash(l.PosterName))))
	}
	if len(lines) == 1 {
		return textNoOpenListings
	}
	return strings.Join(lines, "\n")
}
