package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/config"
	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/repository"
	"github.com/xiaot623/gochat/internal/service"
	transporthttp "github.com/xiaot623/gochat/internal/transport/http"
)

func startServer(t *testing.T) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(repository.NewMemoryStore(), llm.NewMockClient("m1").WithDelay(0), &config.Config{}, nil, logger)
	ts := httptest.NewServer(transporthttp.NewServer(svc, nil))
	t.Cleanup(ts.Close)

	prev := serverURL
	serverURL = ts.URL
	t.Cleanup(func() { serverURL = prev })
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{w: &buf}
	for _, content := range []string{"He", "Hello", "Hello, wörld"} {
		p.update(domain.Message{Role: domain.RoleAssistant, Content: content})
	}
	assert.Equal(t, "Hello, wörld", buf.String())

	p.update(domain.Message{Role: domain.RoleAssistant, Content: domain.FailedTurnText, Error: true})
	assert.Equal(t, "Hello, wörld\n[error] "+domain.FailedTurnText, buf.String())
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "-", formatSize(0))
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.8 GB", formatSize(4_081_000_000))
}

func TestRepl(t *testing.T) {
	startServer(t)

	var out bytes.Buffer
	replCmd.SetIn(strings.NewReader("hi\n\n/history\n/quit\n"))
	replCmd.SetOut(&out)
	replCmd.SetContext(context.Background())
	replModel, replSession = "m1", ""
	t.Cleanup(func() { replModel = "" })

	require.NoError(t, runRepl(replCmd, nil))

	text := out.String()
	assert.Contains(t, text, "(m1)")
	assert.Contains(t, text, `[MOCK] Received your message: "hi". This is a mock response.`+"\n")
	assert.Contains(t, text, "[user]")
	assert.Contains(t, text, "[assistant]")
	assert.True(t, strings.HasSuffix(text, "Bye!\n"))
}

func TestSendRequiresSessionOrModel(t *testing.T) {
	startServer(t)

	sendCmd.SetContext(context.Background())
	sendSession, sendModel = "", ""
	err := runSend(sendCmd, []string{"hello"})
	assert.ErrorContains(t, err, "--session or --model")
}

func TestSendUnknownSession(t *testing.T) {
	startServer(t)

	sendCmd.SetContext(context.Background())
	sendCmd.SetOut(io.Discard)
	sendSession, sendModel = "missing", ""
	t.Cleanup(func() { sendSession = "" })

	err := runSend(sendCmd, []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
