package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/redistbot/core/telegram/state"
	"github.com/m3rciful/redistbot/internal/listing"
)

func text(s string) Input { return Input{Text: s} }

func TestSubmissionHappyPath(t *testing.T) {
	s := NewSubmission(7, "donor")
	steps := []struct {
		in   Input
		want Prompt
	}{
		{text("Rice"), PromptQuantity},
		{text("abc"), PromptQuantity},
		{text("0"), PromptQuantity},
		{text(" 12 "), PromptSize},
		{text("NA"), PromptExpiry},
	}
	for _, st := range steps {
		got, _ := s.Next(st.in)
		assert.Equal(t, st.want, got, st.in.Text)
	}

	p, err := s.Pick(time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, PromptLocation, p)

	p, err = s.Next(text("Dock 2"))
	require.NoError(t, err)
	assert.Equal(t, PromptPhoto, p)

	_, err = s.Next(text("later"))
	assert.ErrorIs(t, err, ErrPhoto)

	p, err = s.Next(Input{PhotoID: "AgAD"})
	require.NoError(t, err)
	assert.Equal(t, PromptConfirm, p)
	assert.True(t, s.Ready())

	_, err = s.Next(text("yes"))
	assert.ErrorIs(t, err, ErrUseButtons)

	assert.Equal(t, listing.Draft{
		PosterID: 7, PosterName: "donor", Item: "Rice", Quantity: 12,
		Size: "NA", Expiry: "30/11/26", Location: "Dock 2", PhotoID: "AgAD",
	}, s.Draft)
}

func TestSubmissionTypedExpiryAndSkip(t *testing.T) {
	s := &Submission{Step: StepExpiry}
	_, err := s.Next(text("someday"))
	assert.ErrorIs(t, err, ErrDate)

	p, err := s.Next(text("2026-12-01"))
	require.NoError(t, err)
	assert.Equal(t, PromptLocation, p)
	assert.Equal(t, "01/12/26", s.Draft.Expiry)

	_, err = s.Pick(time.Now())
	assert.ErrorIs(t, err, ErrStep)

	s.Step = StepPhoto
	p, err = s.Next(text("Skip"))
	require.NoError(t, err)
	assert.Equal(t, PromptConfirm, p)
	assert.Empty(t, s.Draft.PhotoID)
}

func TestSubmissionRejectsBlankText(t *testing.T) {
	s := NewSubmission(1, "")
	_, err := s.Next(text("   "))
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, StepItem, s.Step)
}

func TestClaimDialog(t *testing.T) {
	c := NewClaim(&listing.Listing{ID: 5, Item: "Rice", Quantity: 10, Remaining: 4})

	_, err := c.Next(text("5"))
	assert.ErrorIs(t, err, ErrExceedsRemaining)
	_, err = c.Next(text("-1"))
	assert.ErrorIs(t, err, ErrQuantity)

	p, err := c.Next(text("4"))
	require.NoError(t, err)
	assert.Equal(t, PromptPickup, p)

	p, err = c.Next(text("10 Oct 2026, 3-5 pm"))
	require.NoError(t, err)
	assert.Equal(t, PromptClaimReady, p)
	assert.Equal(t, 4, c.Quantity)
	assert.Equal(t, "10 Oct 2026, 3-5 pm", c.PickupTime)

	_, err = c.Pick(time.Now())
	assert.ErrorIs(t, err, ErrStep)
}

func TestRescheduleDialog(t *testing.T) {
	r := NewReschedule("n-1")
	_, err := r.Next(text("14:30"))
	assert.ErrorIs(t, err, ErrDate)

	p, err := r.Pick(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, PromptRescheduleTime, p)

	_, err = r.Next(text("soon"))
	assert.ErrorIs(t, err, ErrClock)

	p, err = r.Next(text("2:30 pm"))
	require.NoError(t, err)
	assert.Equal(t, PromptRescheduleReady, p)
	assert.Equal(t, "12 Oct 2026, 14:30", r.Proposed())
}

func TestSessionsLiveInStateStore(t *testing.T) {
	store := state.NewMemory[Session]()
	store.Set(1, NewSubmission(1, "a"))
	store.Set(2, NewReschedule("n"))

	s, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, KindSubmission, s.Kind())
	_, _ = s.Next(text("Rice"))

	s, _ = store.Get(1)
	assert.Equal(t, "Rice", s.(*Submission).Draft.Item, "sessions are stored by pointer")

	store.Clear(1)
	assert.False(t, store.InProgress(1))
	assert.True(t, store.InProgress(2))
}
