package chatgate_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate"
)

func TestTranscript_FirstUserTurnInsertsPreamble(t *testing.T) {
	var tr chatgate.Transcript

	tr = tr.WithUser("be helpful", "hello")
	require.Len(t, tr, 2)
	assert.Equal(t, chatgate.Message{Role: chatgate.RoleSystem, Content: "be helpful"}, tr[0])
	assert.Equal(t, chatgate.Message{Role: chatgate.RoleUser, Content: "hello"}, tr[1])

	// The preamble is inserted only once.
	tr = tr.WithUser("be helpful", "again")
	require.Len(t, tr, 3)
	assert.Equal(t, chatgate.RoleUser, tr[2].Role)
}

func TestTranscript_WindowIdentityWhenShort(t *testing.T) {
	tr := chatgate.Transcript{}.WithUser("p", "hi").WithAssistant("hello")

	assert.Equal(t, tr, tr.Window(10))
	assert.Equal(t, tr, tr.Window(len(tr)))
}

func TestTranscript_WindowKeepsPreambleAndTail(t *testing.T) {
	tr := chatgate.Transcript{}.WithUser("p", "q0")
	for i := 0; i < 12; i++ {
		tr = tr.WithAssistant(fmt.Sprintf("a%d", i)).WithUser("p", fmt.Sprintf("q%d", i+1))
	}

	windowed := tr.Window(10)
	require.Len(t, windowed, 10)
	assert.Equal(t, tr[0], windowed[0])
	assert.Equal(t, tr[len(tr)-9:], windowed[1:])
	// The stored transcript is untouched.
	assert.Greater(t, len(tr), 10)
}

func TestTranscript_Cleared(t *testing.T) {
	tr := chatgate.Transcript{}.WithUser("p", "hi").WithAssistant("hello")

	cleared := tr.Cleared("p")
	require.Len(t, cleared, 1)
	assert.Equal(t, chatgate.Message{Role: chatgate.RoleSystem, Content: "p"}, cleared[0])
}
