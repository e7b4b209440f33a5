package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandNormalizesAliases(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterCommand("Reset", commands.Command{
		Handler:     noop,
		Description: "Start over",
		Aliases:     []string{"restart", "/RESET", ""},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	name, cmd, ok := reg.LookupCommand("/Restart")
	if !ok || name != "/reset" {
		t.Fatalf("lookup alias = %q, %v", name, ok)
	}
	if len(cmd.Aliases) != 1 || cmd.Aliases[0] != "/restart" {
		t.Fatalf("aliases = %v", cmd.Aliases)
	}
}

func TestRegisterCommandRejectsClashes(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCommand("/exit", commands.Command{Handler: noop, Description: "End", Aliases: []string{"/stop"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCommand("/exit", commands.Command{Handler: noop, Description: "Again"}); err == nil {
		t.Fatalf("duplicate name accepted")
	}
	if err := reg.RegisterCommand("/stop", commands.Command{Handler: noop, Description: "Clash"}); err == nil {
		t.Fatalf("name equal to an alias accepted")
	}
	if err := reg.RegisterCommand("/halt", commands.Command{Handler: noop, Description: "Clash", Aliases: []string{"exit"}}); err == nil {
		t.Fatalf("alias equal to a name accepted")
	}
	if err := reg.RegisterCommand("/empty", commands.Command{Handler: noop}); err == nil {
		t.Fatalf("command without description accepted")
	}
	if _, _, ok := reg.LookupCommand("/halt"); ok {
		t.Fatalf("rejected command was stored")
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	for name, cmd := range map[string]commands.Command{
		"/status": {Handler: noop, Description: "Status"},
		"/start":  {Handler: noop, Description: "Start"},
		"/stats":  {Handler: noop, Description: "Stats", AdminOnly: true},
		"/debug":  {Handler: noop, Description: "Debug", Hidden: true},
	} {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/start" || visible[1].Text != "/status" {
		t.Fatalf("visible = %v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 4 {
		t.Fatalf("all = %v", all)
	}
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("choice", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("choice", noop); err == nil {
		t.Fatalf("duplicate callback accepted")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatalf("empty key accepted")
	}
	if _, ok := reg.GetCallback("choice"); !ok {
		t.Fatalf("callback not found")
	}
	if keys := reg.ListCallbacks(); len(keys) != 1 || keys[0] != "choice" {
		t.Fatalf("keys = %v", keys)
	}

	before := reg.CallbackNotFound()
	reg.SetCallbackNotFound(nil)
	if reg.CallbackNotFound() == nil || before == nil {
		t.Fatalf("nil fallback replaced the default")
	}
}
