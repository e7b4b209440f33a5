package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/telegram/commands"
	"github.com/m3rciful/petbot/core/telegram/netutil"
)

// MsgButtonExpired answers presses of buttons nothing is registered for.
const MsgButtonExpired = "This button is no longer active."

// Registry collects the commands and callback handlers of a bot before the
// routes are built. Commands are registered at startup only; callbacks may be
// looked up concurrently.
type Registry struct {
	commands map[string]commands.Command
	aliases  map[string]string

	callbacksMu      sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback fallback
// answers with MsgButtonExpired.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: MsgButtonExpired})
		},
	}
}

// RegisterCommand adds cmd under name. Names and aliases are normalized to
// "/lower"; a clash with an existing name or alias is an error.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	key := commands.Normalize(name)
	if key == "" || cmd.Handler == nil || cmd.Description == "" {
		return r.rejectCommand(name, "invalid")
	}
	if r.taken(key) {
		return r.rejectCommand(name, "duplicate")
	}

	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		alias := commands.Normalize(a)
		if alias == "" || alias == key {
			continue
		}
		if r.taken(alias) {
			return r.rejectCommand(a, "duplicate_alias")
		}
		aliases = append(aliases, alias)
	}
	cmd.Aliases = aliases

	r.commands[key] = cmd
	for _, alias := range aliases {
		r.aliases[alias] = key
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	_, cmd := r.commands[name]
	_, alias := r.aliases[name]
	return cmd || alias
}

func (r *Registry) rejectCommand(name, reason string) error {
	logger.Warn(context.Background(), logger.ComponentWire, "register.command.skip",
		slog.String("name", name),
		slog.String("cause", reason),
	)
	return fmt.Errorf("register command %q: %s", name, reason)
}

// ListCommands returns the commands sorted by name. With visibleOnly, hidden
// and admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias to the canonical name and command.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key := commands.Normalize(name)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// Commands returns the registered commands keyed by canonical name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback binds handler to the callback unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("register callback %q: invalid", key)
	}
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		logger.Warn(context.Background(), logger.ComponentWire, "register.callback.duplicate",
			slog.String("cb_key", key),
		)
		return fmt.Errorf("register callback %q: duplicate", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys in order.
func (r *Registry) ListCallbacks() []string {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the unknown-callback fallback; nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the unknown-callback fallback.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text no command matched.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands publishes the visible commands as the bot menu. A failure is
// logged and otherwise ignored.
func InitBotCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Warn(ctx, logger.ComponentWire, "register.commands.set_failed",
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.Info(ctx, logger.ComponentWire, "register.commands.set", slog.Int("count", len(list)))
}
