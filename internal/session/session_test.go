package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRole(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "bot", want: "assistant", ok: true},
		{in: "user", want: "user", ok: true},
		{in: "assistant", want: "assistant", ok: true},
		{in: "system", want: "system", ok: false},
		{in: "", want: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := MapRole(tc.in)
		assert.Equal(t, tc.want, got, "role=%q", tc.in)
		assert.Equal(t, tc.ok, ok, "role=%q", tc.in)
	}
}

func TestMapRole_Idempotent(t *testing.T) {
	for _, role := range []string{RoleUser, RoleBot, RoleAssistant} {
		once, ok := MapRole(role)
		require.True(t, ok)
		twice, ok := MapRole(once)
		require.True(t, ok)
		require.Equal(t, once, twice)
	}
}

func TestConversation_AppendKeepsOrder(t *testing.T) {
	var c Conversation
	c.Append(Message{Role: RoleUser, Content: "hi"})
	c.Append(Message{Role: RoleAssistant, Content: "hello"})
	c.Append(Message{Role: RoleUser, Content: "bye"})

	got := c.Messages()
	require.Len(t, got, 3)
	require.Equal(t, []string{"hi", "hello", "bye"}, []string{got[0].Content, got[1].Content, got[2].Content})

	// the returned slice is a copy
	got[0].Content = "changed"
	require.Equal(t, "hi", c.Messages()[0].Content)
}

func TestConversation_Clear(t *testing.T) {
	var c Conversation
	c.Append(Message{Role: RoleUser, Content: "hi"})
	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Empty(t, c.Messages())
}
