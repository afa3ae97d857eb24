package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/presentation/tui"
)

// TurnOptions control how a single turn is sent and printed.
type TurnOptions struct {
	SessionID   string
	DocumentRef string
	JSON        bool
	Render      tui.Renderer
}

// turnOutput is the JSON shape printed with --json.
type turnOutput struct {
	SessionID     string `json:"session_id"`
	Text          string `json:"text"`
	Route         string `json:"route"`
	ErrorCode     string `json:"error_code,omitempty"`
	QuizSessionID string `json:"quiz_session_id,omitempty"`
}

// RunTurn sends one turn and prints the reply. Text is sanitized first.
func RunTurn(ctx context.Context, rt *Runtime, out io.Writer, text string, opts TurnOptions) error {
	text, err := SanitizeInput(text, rt.Config.Input.MaxSize)
	if err != nil {
		return err
	}
	resp, err := rt.Tutor.HandleTurn(ctx, lectern.Turn{
		SessionID:   opts.SessionID,
		Text:        text,
		DocumentRef: opts.DocumentRef,
	})
	if err != nil {
		return err
	}
	return printResponse(out, resp, opts)
}

func printResponse(out io.Writer, resp lectern.FinalResponse, opts TurnOptions) error {
	if opts.JSON {
		o := turnOutput{
			SessionID:     resp.SessionID,
			Text:          resp.Text,
			Route:         string(resp.Route),
			QuizSessionID: resp.QuizSessionID,
		}
		if resp.Error != nil {
			o.ErrorCode = resp.Error.Code
		}
		return json.NewEncoder(out).Encode(o)
	}

	render := opts.Render
	if render == nil {
		render = tui.Plain
	}
	rendered, err := render(resp.Text)
	if err != nil {
		rendered, _ = tui.Plain(resp.Text)
	}
	fmt.Fprint(out, rendered)
	if resp.QuizSessionID != "" {
		fmt.Fprintln(out, tui.Status("quiz in progress, say \"stop quiz\" to leave"))
	}
	return nil
}

// Chat runs an interactive conversation until EOF, "exit", or an interrupt.
func Chat(ctx context.Context, rt *Runtime, in io.Reader, out io.Writer, opts TurnOptions) error {
	if !opts.JSON {
		printSystemMessage(out, "Session '%s' active. Type 'exit' to leave.", opts.SessionID)
	}

	state, found, err := rt.Tutor.Conversation(ctx, opts.SessionID)
	if err != nil {
		return err
	}
	if !found {
		// An empty first turn yields the greeting.
		if err := RunTurn(ctx, rt, out, "", opts); err != nil {
			return err
		}
	} else if !opts.JSON {
		printSystemMessage(out, "Resuming after %d turns.", state.Turns)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if !opts.JSON {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return handleExecutionError(err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		err := RunTurn(ctx, rt, out, line, opts)
		if errors.Is(err, ErrInputTooLarge) || errors.Is(err, ErrInvalidUTF8) {
			printSystemMessage(out, "Input rejected: %v", err)
			continue
		}
		if err != nil {
			return handleExecutionError(err)
		}
	}
}
