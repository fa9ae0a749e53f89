// Package calendar renders a month picker as an inline keyboard and parses
// the button presses it produces.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/redistbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Unique is the callback key of every calendar button.
const Unique = "cal"

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
	blank       = " "
)

var weekdays = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Action is what a calendar button asks for.
type Action int

const (
	Noop Action = iota
	Navigate
	Pick
)

// Click is a parsed calendar callback. Navigate sets Month, Pick sets Day.
type Click struct {
	Action Action
	Month  time.Time
	Day    time.Time
}

func noop(text string) keyboard.Button {
	return keyboard.Action(text, Unique, "noop")
}

// Keyboard builds the month view containing t. Weeks start on Monday.
func Keyboard(t time.Time) *tele.ReplyMarkup {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)

	rows := []keyboard.Row{
		{
			{Text: "<<", Unique: Unique, Data: "nav|" + prev.Format(monthLayout)},
			noop(first.Format("January 2006")),
			{Text: ">>", Unique: Unique, Data: "nav|" + next.Format(monthLayout)},
		},
	}
	header := make(keyboard.Row, 0, len(weekdays))
	for _, d := range weekdays {
		header = append(header, noop(d))
	}
	rows = append(rows, header)

	offset := (int(first.Weekday()) + 6) % 7
	days := make([]keyboard.Button, 0, 42)
	for i := 0; i < offset; i++ {
		days = append(days, noop(blank))
	}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		days = append(days, keyboard.Button{
			Text:   fmt.Sprint(d.Day()),
			Unique: Unique,
			Data:   "date|" + d.Format(dayLayout),
		})
	}
	for len(days)%7 != 0 {
		days = append(days, noop(blank))
	}
	rows = append(rows, keyboard.Grid(days, 7)...)
	return keyboard.Markup(rows...)
}

// Parse decodes the payload of a calendar button.
func Parse(payload string) (Click, error) {
	kind, value, _ := strings.Cut(strings.TrimSpace(payload), "|")
	switch kind {
	case "noop":
		return Click{Action: Noop}, nil
	case "nav":
		m, err := time.Parse(monthLayout, value)
		if err != nil {
			return Click{}, fmt.Errorf("calendar: bad month %q: %w", value, err)
		}
		return Click{Action: Navigate, Month: m}, nil
	case "date":
		d, err := time.Parse(dayLayout, value)
		if err != nil {
			return Click{}, fmt.Errorf("calendar: bad date %q: %w", value, err)
		}
		return Click{Action: Pick, Day: d}, nil
	}
	return Click{}, fmt.Errorf("calendar: unknown payload %q", payload)
}
