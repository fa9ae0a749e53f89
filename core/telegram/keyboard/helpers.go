// Package keyboard assembles inline keyboards from plain button values.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button: a callback button (Unique and Data) or,
// when URL is set, a link.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Row is one keyboard line.
type Row []Button

// Action returns a callback button.
func Action(text, unique, data string) Button {
	return Button{Text: text, Unique: unique, Data: data}
}

// Link returns a URL button.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Cancel returns the standard cancel button for the unique key.
func Cancel(unique string) Button {
	return Action("❌ Cancel", unique, "cancel")
}

func (b Button) inline(m *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *m.URL(b.Text, b.URL).Inline()
	}
	return *m.Data(b.Text, b.Unique, b.Data).Inline()
}

// Markup builds an inline keyboard, one line per row.
func Markup(rows ...Row) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, b.inline(m))
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}

// Grid lays buttons out n per row; the last row may be short.
func Grid(buttons []Button, n int) []Row {
	n = max(n, 1)
	rows := make([]Row, 0, (len(buttons)+n-1)/n)
	for len(buttons) > 0 {
		k := min(n, len(buttons))
		rows = append(rows, Row(buttons[:k]))
		buttons = buttons[k:]
	}
	return rows
}

// Remove hides a reply keyboard left over from an earlier prompt.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
