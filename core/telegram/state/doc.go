// Package state keeps per-user conversation sessions for Telegram bots.
// The session payload type is chosen by the bot, so each dialog can be an
// explicit tagged value instead of loose key/value scratch data.
package state
