// Package projector derives the public text and buttons of a listing from
// its current state. Every function here is pure.
package projector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/redistbot/core/telegram/format"
	"github.com/m3rciful/redistbot/internal/listing"
)

const claimTokenPrefix = "claim_"

// Button is a URL button attached to the channel post.
type Button struct {
	Text string
	URL  string
}

// View is the outward representation of a listing.
//
// Text and Buttons replace the channel post in place. Broadcast and
// PosterNotice are set only for archived listings and are sent as new
// messages, once, by whoever observed the archival transition.
type View struct {
	Text         string
	Buttons      []Button
	Archived     bool
	Broadcast    string
	PosterNotice string
}

// Project renders l. botUsername is used to build the claim deep link.
func Project(l *listing.Listing, botUsername string) View {
	item := format.Bold(l.Item)
	details := []string{
		"📏 Size: " + format.EscapeHTML(format.OrDash(l.Size)),
		"⏰ Expiry: " + format.EscapeHTML(format.OrDash(l.Expiry)),
		"📍 " + format.EscapeHTML(format.OrDash(l.Location)),
	}

	if l.Archived() {
		return View{
			Text:         format.Lines(append([]string{"🧾 " + item, "✅ <b>Fully Claimed</b>"}, details...)...),
			Archived:     true,
			Broadcast:    fmt.Sprintf("✅ %s is now fully claimed! 🎉\nThank you for participating ♻️", item),
			PosterNotice: fmt.Sprintf("✅ Your item %s has been fully claimed and archived.", item),
		}
	}

	return View{
		Text: format.Lines(append([]string{
			"🧾 " + item,
			fmt.Sprintf("📦 Remaining: %d of %d", l.Remaining, l.Quantity),
		}, details...)...),
		Buttons: []Button{{Text: "🤝 Claim", URL: ClaimLink(botUsername, l.ID)}},
	}
}

// Post renders the first version of a channel post, before its id is known.
func Post(d listing.Draft) string {
	return format.Lines(
		"🧾 "+format.Bold(d.Item),
		fmt.Sprintf("📦 Quantity: %d", d.Quantity),
		"📏 Size: "+format.EscapeHTML(format.OrDash(d.Size)),
		"⏰ Expiry: "+format.EscapeHTML(format.OrDash(d.Expiry)),
		"📍 "+format.EscapeHTML(format.OrDash(d.Location)),
	)
}

// Preview renders the confirmation shown to the donor before publishing.
func Preview(d listing.Draft) string {
	photo := "none"
	if d.PhotoID != "" {
		photo = "attached"
	}
	return format.Lines(
		"🧾 "+format.Bold(d.Item),
		fmt.Sprintf("📦 Quantity: %d", d.Quantity),
		"📏 Size: "+format.EscapeHTML(format.OrDash(d.Size)),
		"⏰ Expiry: "+format.EscapeHTML(format.OrDash(d.Expiry)),
		"📍 Location: "+format.EscapeHTML(format.OrDash(d.Location)),
		"📸 Photo: "+photo,
	) + "\n\nWould you like to post this to the channel?"
}

// ClaimToken returns the /start payload that opens a claim on id.
func ClaimToken(id int64) string {
	return claimTokenPrefix + strconv.FormatInt(id, 10)
}

// ParseClaimToken extracts the listing id from a /start payload.
func ParseClaimToken(payload string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(payload), claimTokenPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ClaimLink is the deep link behind the Claim button.
func ClaimLink(botUsername string, id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), ClaimToken(id))
}

// ChannelLink returns a public link to the channel, or "" for numeric ids.
func ChannelLink(channel string) string {
	name, ok := strings.CutPrefix(strings.TrimSpace(channel), "@")
	if !ok || name == "" {
		return ""
	}
	return "https://t.me/" + name
}
