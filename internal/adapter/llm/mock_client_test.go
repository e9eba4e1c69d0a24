package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientEchoesLastUserMessage(t *testing.T) {
	client := NewMockClient("m1").WithDelay(0)

	stream, err := client.Generate(context.Background(), &GenerateRequest{
		Model:    "m1",
		Messages: []ChatMessage{{Role: "user", Content: "héllo wörld"}},
	})
	require.NoError(t, err)

	got, err := collect(t, stream)
	require.NoError(t, err)
	assert.Greater(t, len(got), 1)
	assert.Equal(t, `[MOCK] Received your message: "héllo wörld". This is a mock response.`, strings.Join(got, ""))
}

func TestMockClientUnknownModel(t *testing.T) {
	_, err := NewMockClient("m1").Generate(context.Background(), &GenerateRequest{Model: "other"})
	assert.ErrorIs(t, err, ErrUpstreamError)
}

func TestMockClientListModels(t *testing.T) {
	models, err := NewMockClient().ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mock-llama", "mock-mistral"}, ModelNames(models))
}

func TestStaticStream(t *testing.T) {
	boom := errors.New("boom")
	got, err := collect(t, NewStaticStream(context.Background(), []string{"a", "", "b"}, boom))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, boom, err)
}

func TestStaticStreamHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &StaticStream{ctx: ctx, fragments: []string{"a", "b"}, delay: time.Hour}
	cancel()
	assert.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), context.Canceled)
}

func TestNewGenerator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := NewGenerator("", "http://localhost:11434", "", time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, g)

	g, err = NewGenerator("OpenAI", "http://localhost:11434/v1", "", time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, g)

	g, err = NewGenerator("mock", "", "", time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, g)

	_, err = NewGenerator("bogus", "", "", time.Second, logger)
	assert.Error(t, err)
}
