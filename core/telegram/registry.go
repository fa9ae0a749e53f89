package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/redistbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are wrapped with the admin check and kept out of the menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// NamedCommand pairs a command with its canonical "/name".
type NamedCommand struct {
	Name string
	Command
}

var (
	// ErrInvalidCommand is returned for commands without a handler, description or leading slash.
	ErrInvalidCommand = errors.New("telegram: invalid command")
	// ErrDuplicate is returned when a command, alias or callback key is registered twice.
	ErrDuplicate = errors.New("telegram: duplicate registration")
)

// Registry maps commands and callback keys to handlers and keeps the
// fallbacks used for updates nothing else claims. Registration must finish
// before the bot starts; lookups are read-only afterwards.
type Registry struct {
	commands  map[string]Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
	photoFallback    tele.HandlerFunc
}

// NewRegistry creates an empty Registry. Unknown callbacks are answered with
// an "expired" notice until SetCallbackNotFound says otherwise.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "This button has expired."})
		},
	}
}

func slash(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// RegisterCommand adds cmd under name ("/start") and its aliases.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command",
			slog.String("status", "skip"),
			slog.String("name", name),
		)
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if _, taken := r.resolve(name); taken {
		return fmt.Errorf("%w: command %s", ErrDuplicate, name)
	}
	for _, alias := range cmd.Aliases {
		if _, taken := r.resolve(slash(alias)); taken {
			return fmt.Errorf("%w: alias %s", ErrDuplicate, alias)
		}
	}

	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[slash(alias)] = name
	}
	return nil
}

func (r *Registry) resolve(name string) (string, bool) {
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	canonical, ok := r.aliases[name]
	return canonical, ok
}

// LookupCommand finds a command by name or alias, with or without the slash,
// and returns its canonical name.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	canonical, ok := r.resolve(slash(name))
	if !ok {
		return "", Command{}, false
	}
	return canonical, r.commands[canonical], true
}

// Commands returns every command ordered by name.
func (r *Registry) Commands() []NamedCommand {
	out := make([]NamedCommand, 0, len(r.commands))
	for name, cmd := range r.commands {
		out = append(out, NamedCommand{Name: name, Command: cmd})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MenuCommands lists the commands shown in the Telegram command menu.
func (r *Registry) MenuCommands() []tele.Command {
	var menu []tele.Command
	for _, c := range r.Commands() {
		if c.Hidden || c.AdminOnly {
			continue
		}
		menu = append(menu, tele.Command{Text: strings.TrimPrefix(c.Name, "/"), Description: c.Description})
	}
	return menu
}

// RegisterCallback binds a callback unique key to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback",
			slog.String("status", "skip"),
			slog.String("key", key),
		)
		return errors.New("telegram: invalid callback registration")
	}
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("%w: callback %s", ErrDuplicate, key)
	}
	r.callbacks[key] = handler
	return nil
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackKeys returns the registered keys in order.
func (r *Registry) CallbackKeys() []string {
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc { return r.callbackNotFound }

// SetTextFallback sets the handler for text no dialog or command claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.textFallback = h }

// TextFallback returns the handler for unclaimed text.
func (r *Registry) TextFallback() tele.HandlerFunc { return r.textFallback }

// SetPhotoFallback sets the handler for photos sent outside a dialog.
func (r *Registry) SetPhotoFallback(h tele.HandlerFunc) { r.photoFallback = h }

// PhotoFallback returns the handler for photos sent outside a dialog.
func (r *Registry) PhotoFallback() tele.HandlerFunc { return r.photoFallback }

// PublishMenu replaces the bot's command menu with the registry's menu commands.
// A failure is logged; the bot still works without a menu.
func PublishMenu(bot *tele.Bot, reg *Registry) {
	menu := reg.MenuCommands()
	if err := bot.SetCommands(menu); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
}
