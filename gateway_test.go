package chatgate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate"
	"github.com/ineyio/chatgate/provider/mock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestModelGateway_SelectedProviderUsed(t *testing.T) {
	primary := mock.New(mock.WithName("primary"), mock.WithReply("from primary"))
	fallback := mock.New(mock.WithName("fallback"), mock.WithReply("from fallback"))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{primary, fallback}, "fallback",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), []chatgate.Message{{Role: "user", Content: "hi"}}, "primary")
	require.NoError(t, err)
	assert.Equal(t, "from primary", text)
	assert.Equal(t, 0, fallback.Calls())
}

func TestModelGateway_FallsBackToDefaultOnFailure(t *testing.T) {
	primary := mock.New(mock.WithName("primary"), mock.WithError(chatgate.ErrProviderUnavailable))
	fallback := mock.New(mock.WithName("fallback"), mock.WithReply("from fallback"))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{primary, fallback}, "fallback",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), nil, "primary")
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
}

func TestModelGateway_AllFailedReturnsGatewayError(t *testing.T) {
	primary := mock.New(mock.WithName("primary"), mock.WithError(chatgate.ErrProviderUnavailable))
	fallback := mock.New(mock.WithName("fallback"), mock.WithError(chatgate.ErrRateLimited))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{primary, fallback}, "fallback",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), nil, "primary")
	require.Error(t, err)
	assert.ErrorIs(t, err, chatgate.ErrAllProvidersFailed)

	var ge *chatgate.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 2, ge.Attempts)
}

func TestModelGateway_UnknownProviderUsesDefault(t *testing.T) {
	fallback := mock.New(mock.WithName("fallback"), mock.WithReply("from fallback"))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{fallback}, "fallback",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), nil, "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
}

func TestModelGateway_StreamedFragmentsConcatenated(t *testing.T) {
	streaming := mock.NewStreaming([]string{"Hel", "lo ", "wor", "ld"}, mock.WithName("s"))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{streaming}, "s",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), nil, "s")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestModelGateway_EmptyReplySubstituted(t *testing.T) {
	empty := mock.New(mock.WithName("e"), mock.WithReply("   \n"))

	g, err := chatgate.NewModelGateway([]chatgate.Provider{empty}, "e",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), nil, "e")
	require.NoError(t, err)
	assert.Contains(t, text, "could not generate a response")
}

func TestModelGateway_NamesStableOrder(t *testing.T) {
	g, err := chatgate.NewModelGateway([]chatgate.Provider{
		mock.New(mock.WithName("zeta")),
		mock.New(mock.WithName("alpha")),
		mock.New(mock.WithName("mid")),
	}, "mid", chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	want := []string{"mid", "alpha", "zeta"}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, g.Names())
	}
}

func TestNewModelGateway_RequiresRegisteredFallback(t *testing.T) {
	_, err := chatgate.NewModelGateway([]chatgate.Provider{mock.New()}, "missing")
	assert.Error(t, err)

	_, err = chatgate.NewModelGateway(nil, "any")
	assert.Error(t, err)
}
