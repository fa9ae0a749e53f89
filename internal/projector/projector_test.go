package projector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/redistbot/internal/listing"
)

func sample() *listing.Listing {
	return &listing.Listing{
		ID: 42, PosterID: 1, Item: "Gloves <M>", Quantity: 10, Remaining: 4,
		Size: "M", Expiry: "30/11/26", Location: "Ward 3",
		Claims: []listing.Claim{{UserID: 2, Quantity: 6, Time: "Mon"}},
	}
}

func TestProjectOpen(t *testing.T) {
	v := Project(sample(), "redistbot")
	assert.False(t, v.Archived)
	assert.Equal(t, "🧾 <b>Gloves &lt;M&gt;</b>\n📦 Remaining: 4 of 10\n📏 Size: M\n⏰ Expiry: 30/11/26\n📍 Ward 3", v.Text)
	require.Len(t, v.Buttons, 1)
	assert.Equal(t, "https://t.me/redistbot?start=claim_42", v.Buttons[0].URL)
	assert.Empty(t, v.Broadcast)
	assert.Empty(t, v.PosterNotice)
}

func TestProjectArchivedDropsButtons(t *testing.T) {
	l := sample()
	before := Project(l, "redistbot")

	l.Remaining = 0
	l.Claims = append(l.Claims, listing.Claim{UserID: 3, Quantity: 4, Time: "Tue"})
	after := Project(l, "redistbot")

	assert.True(t, after.Archived)
	assert.Empty(t, after.Buttons)
	assert.Contains(t, after.Text, "✅ <b>Fully Claimed</b>")
	assert.NotContains(t, after.Text, "Remaining")
	assert.Contains(t, after.Broadcast, "is now fully claimed")
	assert.Contains(t, after.PosterNotice, "fully claimed and archived")
	assert.NotEqual(t, before.Text, after.Text)
}

func TestProjectIsIdempotent(t *testing.T) {
	l := sample()
	assert.Equal(t, Project(l, "bot"), Project(l, "bot"))
	l.Remaining = 0
	assert.Equal(t, Project(l, "bot"), Project(l, "bot"))
}

func TestClaimToken(t *testing.T) {
	assert.Equal(t, "claim_7", ClaimToken(7))

	id, ok := ParseClaimToken("claim_7")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	for _, bad := range []string{"", "claim_", "claim_x", "claim_-1", "other_7"} {
		_, ok := ParseClaimToken(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "https://t.me/bot?start=claim_7", ClaimLink("@bot", 7))
}

func TestPostAndPreview(t *testing.T) {
	d := listing.Draft{Item: "Rice", Quantity: 3, Size: "NA", Expiry: "01/12/26", Location: "Dock"}
	assert.Contains(t, Post(d), "📦 Quantity: 3")
	assert.Contains(t, Preview(d), "📸 Photo: none")
	d.PhotoID = "file"
	assert.Contains(t, Preview(d), "📸 Photo: attached")
}

func TestChannelLink(t *testing.T) {
	assert.Equal(t, "https://t.me/surplus", ChannelLink("@surplus"))
	assert.Empty(t, ChannelLink("-1001234"))
}
