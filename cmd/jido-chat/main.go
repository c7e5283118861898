// ABOUTME: Entry point for the jido-chat demo binary
// ABOUTME: Runs a local room with scripted echo agents over the coordination core

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/azmaveth/jido-chat/internal/broker"
	"github.com/azmaveth/jido-chat/internal/chat"
	"github.com/azmaveth/jido-chat/internal/config"
	"github.com/azmaveth/jido-chat/internal/store"
	"github.com/azmaveth/jido-chat/internal/turn"
)

// Version is set at build time.
var version = "dev"

const banner = `
    _ _     _                 _           _
   (_) (_) | | ___        ___| |__   __ _| |_
   | | |/ _' |/ _ \ _____ / __| '_ \ / _' | __|
   | | | (_| | (_) |_____| (__| | | | (_| | |_
  _/ |_|\__,_|\___/       \___|_| |_|\__,_|\__|
 |__/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: jido-chat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  demo      Run a local round-robin room with echo agents")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "demo":
		err = runDemo(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the path to the config file.
// Priority: JIDO_CHAT_CONFIG env var > ./jido-chat.yaml (when present)
func getConfigPath() string {
	if envPath := os.Getenv("JIDO_CHAT_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("jido-chat.yaml"); err == nil {
		return "jido-chat.yaml"
	}
	return ""
}

func runDemo(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg := config.Default()
	configPath := getConfigPath()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Store:    %s\n", cfg.Store.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Strategy: %s (timeout %s)\n\n", cfg.Chat.Strategy, cfg.Chat.TurnTimeout)

	b := broker.New(logger)
	defer b.Close()

	svc := chat.NewService(st, b, chat.Defaults{
		MessageLimit: cfg.Chat.MessageLimit,
		TurnTimeout:  cfg.Chat.TurnTimeout,
	}, logger)
	defer svc.Close()

	room, err := svc.CreateRoom(ctx, "lobby", chat.RoomOptions{
		Name:     "Lobby",
		Strategy: turn.New(cfg.Chat.Strategy, cfg.Chat.TurnTimeout),
	})
	if err != nil {
		return fmt.Errorf("creating room: %w", err)
	}

	if _, err := room.Join(ctx, store.Participant{ID: "you", DisplayName: "You", Type: store.ParticipantTypeHuman}); err != nil {
		return fmt.Errorf("joining room: %w", err)
	}
	for _, id := range []string{"echo-1", "echo-2"} {
		if _, err := room.Join(ctx, store.Participant{ID: id, DisplayName: id, Type: store.ParticipantTypeAgent}); err != nil {
			return fmt.Errorf("joining room: %w", err)
		}
		go runEchoAgent(ctx, room, b, id)
	}

	go printRoomEvents(ctx, b, room.ID())

	fmt.Println("Type a message and press enter. Ctrl-C to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := room.PostMessage(ctx, "you", line); err != nil {
			fmt.Fprintf(os.Stderr, "post failed: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// runEchoAgent replies once to each human message when its turn arrives,
// then stays silent so the turn timeout is visible in the demo.
func runEchoAgent(ctx context.Context, room *chat.Room, b *broker.Broker, agentID string) {
	events, _ := b.Subscribe(ctx, broker.RoomTopic(room.ID()))

	var lastHuman string
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			switch {
			case msg.Type == store.MessageTypeText && msg.SenderID == "you":
				lastHuman = msg.Content
			case msg.Type == store.MessageTypeTurnNotification && msg.Metadata[store.MetadataTargetKey] == agentID:
				if lastHuman == "" {
					continue
				}
				reply := fmt.Sprintf("%s heard: %q", agentID, lastHuman)
				lastHuman = ""
				if _, err := room.PostMessage(ctx, agentID, reply); err != nil {
					slog.Debug("agent post rejected", "agent_id", agentID, "error", err)
				}
			}
		}
	}
}

// printRoomEvents renders the room-wide stream to the terminal.
func printRoomEvents(ctx context.Context, b *broker.Broker, roomID string) {
	events, _ := b.Subscribe(ctx, broker.RoomTopic(roomID))

	senderColor := color.New(color.FgYellow)
	dim := color.New(color.FgHiBlack)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			switch msg.Type {
			case store.MessageTypeTurnNotification:
				dim.Printf("  -- %s\n", msg.Content)
			case store.MessageTypeJoin, store.MessageTypeLeave:
				dim.Printf("  -- %s\n", msg.Content)
			default:
				if msg.SenderID == "you" {
					continue // already on screen as the typed line
				}
				senderColor.Printf("%s: ", msg.SenderID)
				fmt.Println(msg.Content)
			}
		}
	}
}

// openStore builds the configured persistence backend.
func openStore(cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.DriverBadger:
		s, err := store.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger store: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
