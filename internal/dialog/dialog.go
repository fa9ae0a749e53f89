// Package dialog holds the per-user conversations of the bot as explicit
// sessions. Each session is one of Submission, Claim or Reschedule and
// advances one step per input; nothing here talks to Telegram.
package dialog

import (
	"errors"
	"strconv"
	"strings"
	"time"

	tghelpers "github.com/m3rciful/redistbot/core/telegram/helpers"
	"github.com/m3rciful/redistbot/internal/listing"
)

// Input validation errors. The session stays on the same step.
var (
	ErrEmpty            = errors.New("empty input")
	ErrQuantity         = errors.New("quantity must be a positive whole number")
	ErrExceedsRemaining = errors.New("quantity exceeds remaining stock")
	ErrDate             = errors.New("unrecognised date")
	ErrClock            = errors.New("unrecognised time of day")
	ErrPhoto            = errors.New("expected a photo or skip")
	ErrUseButtons       = errors.New("answer with the buttons")
	ErrStep             = errors.New("input does not belong to this step")
)

const (
	// ExpiryLayout formats expiry dates on listings.
	ExpiryLayout = "02/01/06"
	// PickupDateLayout formats the date part of a proposed pickup.
	PickupDateLayout = "02 Jan 2006"
)

// Kind names a session variant.
type Kind string

const (
	KindSubmission Kind = "submission"
	KindClaim      Kind = "claim"
	KindReschedule Kind = "reschedule"
)

// Prompt tells the caller what to ask for next.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptItem
	PromptQuantity
	PromptSize
	PromptExpiry
	PromptLocation
	PromptPhoto
	PromptConfirm
	PromptPickup
	PromptClaimReady
	PromptRescheduleDate
	PromptRescheduleTime
	PromptRescheduleReady
)

// Input is one user message.
type Input struct {
	Text    string
	PhotoID string
}

// Session is implemented by *Submission, *Claim and *Reschedule.
type Session interface {
	Kind() Kind
	// Next consumes in and returns the following prompt.
	Next(in Input) (Prompt, error)
	// Pick consumes a calendar date.
	Pick(day time.Time) (Prompt, error)
}

func positive(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 0, ErrQuantity
	}
	return n, nil
}

func required(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", ErrEmpty
	}
	return t, nil
}

// SubmissionStep enumerates the donor's steps.
type SubmissionStep int

const (
	StepItem SubmissionStep = iota
	StepQuantity
	StepSize
	StepExpiry
	StepLocation
	StepPhoto
	StepConfirm
)

// Submission collects a new listing.
type Submission struct {
	Step  SubmissionStep
	Draft listing.Draft
}

// NewSubmission starts a submission for the poster.
func NewSubmission(posterID int64, posterName string) *Submission {
	return &Submission{Draft: listing.Draft{PosterID: posterID, PosterName: posterName}}
}

func (s *Submission) Kind() Kind { return KindSubmission }

func (s *Submission) Next(in Input) (Prompt, error) {
	switch s.Step {
	case StepItem:
		v, err := required(in.Text)
		if err != nil {
			return PromptItem, err
		}
		s.Draft.Item, s.Step = v, StepQuantity
		return PromptQuantity, nil
	case StepQuantity:
		n, err := positive(in.Text)
		if err != nil {
			return PromptQuantity, err
		}
		s.Draft.Quantity, s.Step = n, StepSize
		return PromptSize, nil
	case StepSize:
		v, err := required(in.Text)
		if err != nil {
			return PromptSize, err
		}
		s.Draft.Size, s.Step = v, StepExpiry
		return PromptExpiry, nil
	case StepExpiry:
		day, ok := tghelpers.ParseFlexibleDate(in.Text)
		if !ok {
			return PromptExpiry, ErrDate
		}
		return s.Pick(day)
	case StepLocation:
		v, err := required(in.Text)
		if err != nil {
			return PromptLocation, err
		}
		s.Draft.Location, s.Step = v, StepPhoto
		return PromptPhoto, nil
	case StepPhoto:
		switch {
		case in.PhotoID != "":
			s.Draft.PhotoID = in.PhotoID
		case strings.EqualFold(strings.TrimSpace(in.Text), "skip"):
			s.Draft.PhotoID = ""
		default:
			return PromptPhoto, ErrPhoto
		}
		s.Step = StepConfirm
		return PromptConfirm, nil
	}
	return PromptConfirm, ErrUseButtons
}

// Pick sets the expiry date from the calendar.
func (s *Submission) Pick(day time.Time) (Prompt, error) {
	if s.Step != StepExpiry {
		return PromptNone, ErrStep
	}
	s.Draft.Expiry, s.Step = day.Format(ExpiryLayout), StepLocation
	return PromptLocation, nil
}

// Ready reports whether the draft can be published.
func (s *Submission) Ready() bool { return s.Step == StepConfirm }

// ClaimStep enumerates the claimant's steps.
type ClaimStep int

const (
	ClaimQuantity ClaimStep = iota
	ClaimPickup
	ClaimDone
)

// Claim collects a claim request on one listing.
type Claim struct {
	Step      ClaimStep
	ListingID int64
	Item      string
	// Remaining is the stock seen when the dialog started; it is only a hint.
	Remaining  int
	Quantity   int
	PickupTime string
}

// NewClaim starts a claim on l.
func NewClaim(l *listing.Listing) *Claim {
	return &Claim{ListingID: l.ID, Item: l.Item, Remaining: l.Remaining}
}

func (c *Claim) Kind() Kind { return KindClaim }

func (c *Claim) Next(in Input) (Prompt, error) {
	switch c.Step {
	case ClaimQuantity:
		n, err := positive(in.Text)
		if err != nil {
			return PromptQuantity, err
		}
		if n > c.Remaining {
			return PromptQuantity, ErrExceedsRemaining
		}
		c.Quantity, c.Step = n, ClaimPickup
		return PromptPickup, nil
	case ClaimPickup:
		v, err := required(in.Text)
		if err != nil {
			return PromptPickup, err
		}
		c.PickupTime, c.Step = v, ClaimDone
		return PromptClaimReady, nil
	}
	return PromptNone, ErrStep
}

func (c *Claim) Pick(time.Time) (Prompt, error) { return PromptNone, ErrStep }

// RescheduleStep enumerates the poster's steps when proposing a new time.
type RescheduleStep int

const (
	RescheduleDate RescheduleStep = iota
	RescheduleTime
	RescheduleDone
)

// Reschedule collects a new pickup proposal for a negotiation.
type Reschedule struct {
	Step          RescheduleStep
	NegotiationID string
	Date          string
	Clock         string
}

// NewReschedule starts a proposal for the negotiation.
func NewReschedule(negotiationID string) *Reschedule {
	return &Reschedule{NegotiationID: negotiationID}
}

func (r *Reschedule) Kind() Kind { return KindReschedule }

func (r *Reschedule) Next(in Input) (Prompt, error) {
	switch r.Step {
	case RescheduleDate:
		day, ok := tghelpers.ParseFlexibleDate(in.Text)
		if !ok {
			return PromptRescheduleDate, ErrDate
		}
		return r.Pick(day)
	case RescheduleTime:
		clock, ok := tghelpers.ParseClock(in.Text)
		if !ok {
			return PromptRescheduleTime, ErrClock
		}
		r.Clock, r.Step = clock, RescheduleDone
		return PromptRescheduleReady, nil
	}
	return PromptNone, ErrStep
}

// Pick sets the proposed date from the calendar.
func (r *Reschedule) Pick(day time.Time) (Prompt, error) {
	if r.Step != RescheduleDate {
		return PromptNone, ErrStep
	}
	r.Date, r.Step = day.Format(PickupDateLayout), RescheduleTime
	return PromptRescheduleTime, nil
}

// Proposed returns the agreed "<date>, <time>" text.
func (r *Reschedule) Proposed() string {
	return r.Date + ", " + r.Clock
}
