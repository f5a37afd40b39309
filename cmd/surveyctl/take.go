package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vytor/assessment/internal/autosave"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/client"
	"github.com/vytor/assessment/internal/models"
	"github.com/vytor/assessment/internal/payload"
)

const heartbeatInterval = 15 * time.Second

func runTake(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("take", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:8080", "survey server base URL")
	id := fs.String("id", "", "participant id")
	pin := fs.String("pin", "", "participant PIN")
	lang := fs.String("lang", "", "preferred language (en, fr, ar)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *pin == "" {
		return fmt.Errorf("take needs -id and -pin")
	}

	c := client.New(*server, client.WithAcceptLanguage(*lang))
	login, err := c.Login(ctx, *id, *pin)
	if err != nil {
		return err
	}
	if _, err := c.StartSession(ctx); err != nil {
		return err
	}
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state.Session != nil && state.Session.IsCompleted {
		fmt.Fprintf(out, "%s, you have already completed the survey.\n", login.Profile.Name)
		return nil
	}
	remote, err := c.Catalog(ctx)
	if err != nil {
		return err
	}
	cat, err := catalog.New(remote.Questions)
	if err != nil {
		return err
	}

	go c.KeepAlive(ctx, heartbeatInterval)

	current := make(map[int]string, len(state.Answers))
	for _, a := range state.Answers {
		current[a.QuestionID] = a.AnswerText
	}

	saver := autosave.New(c.SaveFunc(),
		autosave.WithContext(ctx),
		autosave.WithErrorHandler(func(err error) { fmt.Fprintf(out, "  (autosave failed: %v)\n", err) }),
	)
	defer saver.Close()

	if login.HasProgress {
		fmt.Fprintf(out, "Welcome back %s, resuming at question %d.\n", login.Profile.Name, state.ResumeIndex+1)
	} else {
		fmt.Fprintf(out, "Welcome %s.\n", login.Profile.Name)
	}
	fmt.Fprintln(out, `Enter an answer, empty to keep the current one, "<" to go back, "q" to pause.`)

	t := &terminal{
		out:   out,
		lines: bufio.NewScanner(in),
		lang:  login.Language,
	}
	index := state.ResumeIndex
	for index < cat.Len() {
		q, _ := cat.At(index)
		existing, _ := payload.Decode(q, current[q.ID])
		saver.Focus(q.ID, q.Section, index, existing)
		t.ask(cat, index, q, current[q.ID])

		line, ok := t.read()
		switch {
		case !ok || line == "q":
			if err := saver.Flush(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Progress saved. Log in again to continue.")
			return nil
		case line == "<":
			if index == 0 {
				continue
			}
			if err := c.LogEvent(ctx, models.EventBacktrack); err != nil {
				fmt.Fprintf(out, "  (could not record event: %v)\n", err)
			}
			if err := saver.Navigate(ctx, index-1); err != nil {
				return err
			}
			index--
			continue
		case line != "":
			v, err := parseInput(q, line)
			if err != nil {
				fmt.Fprintf(out, "  %v\n", err)
				continue
			}
			saver.Edit(v)
			current[q.ID] = payload.Encode(v)
		}

		if err := saver.Navigate(ctx, min(index+1, cat.Len()-1)); err != nil {
			return err
		}
		index++
	}

	if err := c.Complete(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Thank you, your answers have been submitted.")
	return nil
}

type terminal struct {
	out   io.Writer
	lines *bufio.Scanner
	lang  models.Language
}

func (t *terminal) ask(cat *catalog.Catalog, index int, q catalog.Question, answer string) {
	fmt.Fprintf(t.out, "\n[%d/%d %.0f%%] %s\n%s\n", index+1, cat.Len(), cat.Progress(index)*100, q.Section, q.Prompt(t.lang))
	for i, o := range q.Options {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, o.Text.In(t.lang))
	}
	if q.Scale != nil {
		fmt.Fprintf(t.out, "  %d (%s) .. %d (%s)\n", q.Scale.Min, q.Scale.MinLabel.In(t.lang), q.Scale.Max, q.Scale.MaxLabel.In(t.lang))
	}
	if answer != "" {
		fmt.Fprintf(t.out, "  current: %s\n", answer)
	}
	fmt.Fprint(t.out, "> ")
}

func (t *terminal) read() (string, bool) {
	if !t.lines.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.lines.Text()), true
}

// parseInput accepts option numbers or ids, comma separated for multiple
// choice questions.
func parseInput(q catalog.Question, line string) (payload.Value, error) {
	switch q.Type {
	case catalog.TypeSingle:
		id, err := optionID(q, line)
		if err != nil {
			return nil, err
		}
		return payload.Parse(q, id)
	case catalog.TypeMultiple:
		var ids []string
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := optionID(q, part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return payload.Parse(q, payload.Encode(payload.MultiChoice(ids)))
	}
	return payload.Parse(q, line)
}

func optionID(q catalog.Question, s string) (string, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > len(q.Options) {
			return "", fmt.Errorf("choose a number between 1 and %d", len(q.Options))
		}
		return q.Options[n-1].ID, nil
	}
	if !q.HasOption(s) {
		return "", fmt.Errorf("unknown option %q", s)
	}
	return s, nil
}
