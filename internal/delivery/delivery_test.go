package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/redistbot/internal/listing"
	"github.com/m3rciful/redistbot/internal/metrics"
)

type call struct {
	kind string
	to   string
	text string
	kb   bool
}

type fakeBot struct {
	calls      []call
	captionErr error
	textErr    error
	nextID     int
}

func hasKB(opts []interface{}) bool {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so.ReplyMarkup != nil {
			return true
		}
	}
	return false
}

func (b *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	text, _ := what.(string)
	if p, ok := what.(*tele.Photo); ok {
		text = "photo:" + p.Caption
	}
	b.calls = append(b.calls, call{kind: "send", to: to.Recipient(), text: text, kb: hasKB(opts)})
	b.nextID++
	return &tele.Message{ID: b.nextID}, nil
}

func (b *fakeBot) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	id, _ := msg.MessageSig()
	text, _ := what.(string)
	b.calls = append(b.calls, call{kind: "text", to: id, text: text, kb: hasKB(opts)})
	return nil, b.textErr
}

func (b *fakeBot) EditCaption(msg tele.Editable, caption string, opts ...interface{}) (*tele.Message, error) {
	id, _ := msg.MessageSig()
	b.calls = append(b.calls, call{kind: "caption", to: id, text: caption, kb: hasKB(opts)})
	return nil, b.captionErr
}

func (b *fakeBot) kinds() []string {
	out := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.kind)
	}
	return out
}

func open(photo string) *listing.Listing {
	return &listing.Listing{ID: 77, PosterID: 5, Item: "Masks", Quantity: 3, Remaining: 3, PhotoID: photo}
}

func TestVariantsOrderFollowsPhoto(t *testing.T) {
	assert.Equal(t, []Variant{EditCaption, EditText}, Variants(open("file")))
	assert.Equal(t, []Variant{EditText, EditCaption}, Variants(open("")))
}

func TestRenderFallsBackToSecondVariant(t *testing.T) {
	bot := &fakeBot{captionErr: errors.New("telegram: Bad Request: there is no caption in the message to edit (400)")}
	ch := NewChannel(bot, -100, "redistbot", metrics.New())

	view, err := ch.Render(context.Background(), open("file"))
	require.NoError(t, err)
	assert.Equal(t, []string{"caption", "text"}, bot.kinds())
	assert.Equal(t, "77", bot.calls[1].to)
	assert.True(t, bot.calls[1].kb)
	assert.False(t, view.Archived)
}

func TestRenderTreatsNotModifiedAsSuccess(t *testing.T) {
	bot := &fakeBot{textErr: errors.New("telegram: Bad Request: message is not modified (400)")}
	ch := NewChannel(bot, -100, "redistbot", nil)

	_, err := ch.Render(context.Background(), open(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, bot.kinds())
}

func TestRenderReportsWhenAllVariantsFail(t *testing.T) {
	bot := &fakeBot{captionErr: errors.New("a"), textErr: errors.New("b")}
	ch := NewChannel(bot, -100, "redistbot", nil)

	_, err := ch.Render(context.Background(), open(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text: b")
	assert.Contains(t, err.Error(), "caption: a")
}

func TestSyncAnnouncesArchivalOnce(t *testing.T) {
	bot := &fakeBot{}
	ch := NewChannel(bot, -100, "redistbot", nil)
	l := open("")
	l.Remaining = 0
	l.Claims = []listing.Claim{{UserID: 9, Quantity: 3, Time: "now"}}

	ch.Sync(context.Background(), l, true)
	require.Equal(t, []string{"text", "send", "send"}, bot.kinds())
	assert.False(t, bot.calls[0].kb, "archived post has no buttons")
	assert.Equal(t, "-100", bot.calls[1].to)
	assert.Contains(t, bot.calls[1].text, "is now fully claimed")
	assert.Equal(t, "5", bot.calls[2].to)

	bot.calls = nil
	ch.Sync(context.Background(), l, false)
	assert.Equal(t, []string{"text"}, bot.kinds())
}

func TestPublishSendsPhotoWithCaption(t *testing.T) {
	bot := &fakeBot{nextID: 40}
	ch := NewChannel(bot, -100, "redistbot", nil)

	id, err := ch.Publish(context.Background(), listing.Draft{Item: "Masks", Quantity: 2, PhotoID: "file"})
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
	assert.Contains(t, bot.calls[0].text, "photo:")
}

type resolver struct{ id int64 }

func (r resolver) ChatByUsername(string) (*tele.Chat, error) { return &tele.Chat{ID: r.id}, nil }

func TestResolveChannel(t *testing.T) {
	id, err := ResolveChannel(nil, "-100123")
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), id)

	id, err = ResolveChannel(resolver{id: -5}, "@surplus")
	require.NoError(t, err)
	assert.Equal(t, int64(-5), id)

	_, err = ResolveChannel(nil, "@surplus")
	assert.Error(t, err)
}
