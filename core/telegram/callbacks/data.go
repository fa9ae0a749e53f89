// Package callbacks reads and writes inline button data in Telebot's
// "\f<unique>|<payload>" form.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is Telegram's limit on callback_data bytes.
const MaxDataLen = 64

// ParseCallbackData returns the unique key and payload of cb. Callbacks
// Telebot already routed by unique carry the bare payload in Data.
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	switch {
	case cb == nil:
		return "", ""
	case cb.Unique != "":
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// CallbackPayload is the payload of the button that produced c.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}

// Encode joins unique and parts the way Telebot encodes button data.
func Encode(unique string, parts ...string) string {
	return "\f" + strings.Join(append([]string{unique}, parts...), "|")
}

// Fits reports whether the encoded button data is within MaxDataLen.
func Fits(unique string, parts ...string) bool {
	return len(Encode(unique, parts...)) <= MaxDataLen
}
