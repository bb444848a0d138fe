package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xaenox/botchat/internal/models"
	"github.com/xaenox/botchat/internal/sim"
)

type consoleEngine interface {
	Snapshot(ctx context.Context) (*models.State, error)
	OnUserMessage(ctx context.Context, text string) (*models.State, error)
	RequestImmediateSpeak(ctx context.Context, botID string) (*models.State, error)
	AddBot(ctx context.Context, patch models.BotPatch) (*models.State, error)
	RemoveBot(ctx context.Context, id string) (*models.State, error)
	ResetAll(ctx context.Context) (*models.State, error)
	Subscribe(fn sim.Listener)
}

const consoleHelp = `commands:
  /bots                 list bots
  /topics               list topics
  /speak <name>         make a bot talk now
  /add <name> [subject] add a bot
  /remove <name>        remove a bot
  /reset                start over
  /quit                 leave
anything else is posted to the chat ("topic: x" adds a topic)`

// runConsole is the terminal front-end: lines from in become user
// messages, bot lines are printed to out.
func runConsole(ctx context.Context, engine consoleEngine, in io.Reader, out io.Writer) error {
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	engine.Subscribe(func(m models.Message) {
		printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Author, m.Text)
	})
	printf("%s\n", consoleHelp)

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleConsoleLine(ctx, engine, strings.TrimSpace(line), printf)
			if err != nil {
				printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleConsoleLine(ctx context.Context, engine consoleEngine, line string, printf func(string, ...any)) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := engine.OnUserMessage(ctx, line)
		return false, err
	}

	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]
	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		printf("%s\n", consoleHelp)
	case "/bots":
		st, err := engine.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		for _, b := range st.Bots {
			status := "online"
			if !b.Online {
				status = "offline"
			}
			printf("  %s (%s, %s-%s, %.0f/h)\n", b.Name, status, b.ActiveStart, b.ActiveEnd, b.TalkFrequency)
		}
	case "/topics":
		st, err := engine.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		printf("  %s\n", strings.Join(st.Topics, ", "))
	case "/speak", "/remove":
		if len(args) == 0 {
			printf("usage: %s <name>\n", command)
			return false, nil
		}
		st, err := engine.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		b := st.BotByName(strings.Join(args, " "))
		if b == nil {
			printf("no bot called %q\n", strings.Join(args, " "))
			return false, nil
		}
		if command == "/speak" {
			_, err = engine.RequestImmediateSpeak(ctx, b.ID)
		} else {
			_, err = engine.RemoveBot(ctx, b.ID)
		}
		return false, err
	case "/add":
		if len(args) == 0 {
			printf("usage: /add <name> [subject]\n")
			return false, nil
		}
		patch := models.BotPatch{Name: &args[0]}
		if len(args) > 1 {
			subject := strings.Join(args[1:], " ")
			patch.Subject = &subject
		}
		_, err := engine.AddBot(ctx, patch)
		return false, err
	case "/reset":
		_, err := engine.ResetAll(ctx)
		return false, err
	default:
		printf("unknown command %s, try /help\n", command)
	}
	return false, nil
}
