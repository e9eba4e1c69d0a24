package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/xiaot623/gochat/internal/client"
	"github.com/xiaot623/gochat/internal/domain"
)

// streamPrinter writes the growing assistant message to w as it arrives.
type streamPrinter struct {
	w       io.Writer
	printed string
}

func (p *streamPrinter) update(m domain.Message) {
	if m.Error {
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintf(p.w, "[error] %s", m.Content)
		p.printed = m.Content
		return
	}
	if strings.HasPrefix(m.Content, p.printed) {
		fmt.Fprint(p.w, m.Content[len(p.printed):])
	} else {
		fmt.Fprint(p.w, "\n"+m.Content)
	}
	p.printed = m.Content
}

// runTurn streams one turn to w. Ctrl+C during the turn aborts it and keeps
// whatever was received.
func runTurn(ctx context.Context, c *client.Client, req domain.TurnRequest, w io.Writer) (*client.Outcome, error) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	p := &streamPrinter{w: w}
	out, err := c.StreamTurn(turnCtx, req, p.update)
	if out != nil && out.Message.Content != "" {
		fmt.Fprintln(w)
	}
	if err != nil {
		if errors.Is(err, client.ErrStreamTruncated) {
			fmt.Fprintln(w, "[connection lost, reply incomplete]")
		}
		return out, err
	}
	if out.Aborted {
		fmt.Fprintln(w, "[aborted]")
	}
	return out, nil
}
