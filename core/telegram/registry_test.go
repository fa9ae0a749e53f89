package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/listings", Command{Handler: noop, Description: "Open listings", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/cancel", Command{Handler: noop, Description: "Cancel", Aliases: []string{"stop"}}))

	assert.ErrorIs(t, reg.RegisterCommand("nostart", Command{Handler: noop, Description: "bad"}), ErrInvalidCommand)
	assert.ErrorIs(t, reg.RegisterCommand("/help", Command{Description: "no handler"}), ErrInvalidCommand)
	assert.ErrorIs(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "dup"}), ErrDuplicate)
	assert.ErrorIs(t, reg.RegisterCommand("/stop", Command{Handler: noop, Description: "clash"}), ErrDuplicate)
	assert.ErrorIs(t, reg.RegisterCommand("/quit", Command{Handler: noop, Description: "x", Aliases: []string{"/cancel"}}), ErrDuplicate)

	cmds := reg.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, "/cancel", cmds[0].Name)
	assert.Equal(t, "/listings", cmds[1].Name)

	menu := reg.MenuCommands()
	require.Len(t, menu, 2)
	assert.Equal(t, tele.Command{Text: "cancel", Description: "Cancel"}, menu[0])
	assert.Equal(t, "start", menu[1].Text)

	for _, name := range []string{"stop", "/stop", "cancel"} {
		key, _, ok := reg.LookupCommand(name)
		assert.True(t, ok, name)
		assert.Equal(t, "/cancel", key)
	}
	_, _, ok := reg.LookupCommand("/missing")
	assert.False(t, ok)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("reject", noop))
	require.NoError(t, reg.RegisterCallback("approve", noop))
	assert.ErrorIs(t, reg.RegisterCallback("approve", noop), ErrDuplicate)
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Error(t, reg.RegisterCallback("post", nil))

	_, ok := reg.Callback("approve")
	assert.True(t, ok)
	_, ok = reg.Callback("suggest")
	assert.False(t, ok)
	assert.Equal(t, []string{"approve", "reject"}, reg.CallbackKeys())
	assert.NotNil(t, reg.CallbackNotFound())

	assert.Nil(t, reg.PhotoFallback())
	reg.SetPhotoFallback(noop)
	assert.NotNil(t, reg.PhotoFallback())
}
