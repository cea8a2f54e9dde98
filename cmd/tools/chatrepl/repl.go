package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/ai"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

// repl drives a single chat session from a line-oriented terminal.
type repl struct {
	personas persona.Store
	prompts  *ai.PersonaPromptManager
	delay    time.Duration
	welcome  bool
	out      io.Writer

	manager *chat.Manager
	current persona.Persona
}

func (r *repl) start(personaID string, completer chat.Completer, opts ...chat.Option) error {
	p, ok := persona.Resolve(r.personas, personaID)
	if !ok {
		return fmt.Errorf("unknown persona %q", personaID)
	}
	if r.welcome {
		opts = append(opts, chat.WithWelcome(p.OpeningLine))
	}
	r.manager = chat.NewManager(completer, opts...)
	r.current = p
	r.manager.SwitchPersona(r.prompts.BuildInstruction(&p))
	return nil
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "Chatting with %s (%s). Commands: /reset, /persona <id>, /stats, /quit\n", r.current.Name, r.current.Title)
	for _, turn := range r.manager.Turns() {
		fmt.Fprintf(r.out, "%s: %s\n", r.current.Name, turn.Content)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.submit(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) submit(ctx context.Context, text string) error {
	turn, err := r.manager.Submit(ctx, text)
	if err != nil {
		if errors.Is(err, chat.ErrCompletionFailed) {
			r.manager.Acknowledge()
		}
		return err
	}

	fmt.Fprintf(r.out, "%s: ", r.current.Name)
	err = chat.Pace(ctx, chat.Stream(turn.Content), r.delay, func(chunk string) error {
		_, werr := io.WriteString(r.out, chunk)
		return werr
	})
	fmt.Fprintln(r.out)
	return err
}

func (r *repl) command(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/reset":
		if err := r.manager.ResetToWelcome(); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "conversation cleared")
		for _, turn := range r.manager.Turns() {
			fmt.Fprintf(r.out, "%s: %s\n", r.current.Name, turn.Content)
		}
	case "/persona":
		if len(fields) < 2 {
			for _, p := range r.personas.List() {
				fmt.Fprintf(r.out, "  %-10s %s, %s\n", p.ID, p.Name, p.Title)
			}
			return false, nil
		}
		p, ok := r.personas.FindByID(fields[1])
		if !ok {
			return false, fmt.Errorf("unknown persona %q", fields[1])
		}
		r.current = p
		r.manager.SwitchPersona(r.prompts.BuildInstruction(&p))
		if r.welcome {
			r.manager.SetWelcome(p.OpeningLine)
		}
		fmt.Fprintf(r.out, "now chatting with %s\n", p.Name)
	case "/stats":
		stats := r.manager.Stats()
		fmt.Fprintf(r.out, "total: %d, user: %d, assistant: %d\n", stats.Total, stats.User, stats.Assistant)
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}
