package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"github.com/mikemainguy/video-conferencing-app/chatsync"
	"github.com/mikemainguy/video-conferencing-app/domain"
	"github.com/mikemainguy/video-conferencing-app/history"
	"github.com/mikemainguy/video-conferencing-app/layout"
	"github.com/mikemainguy/video-conferencing-app/session"
	"github.com/mikemainguy/video-conferencing-app/transport/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Join token
	token, err := fetchToken(ctx, config)
	if err != nil {
		return fmt.Errorf("obtaining join token: %w", err)
	}

	// 3. Session
	params := domain.SessionParams{
		ServerURL: config.ServerURL,
		Token:     token,
		RoomName:  config.Room,
	}
	left := make(chan struct{})
	controller := session.NewController(log, relay.NewTransport(log), params, func() {
		close(left)
	})
	if !controller.MaybeConnect(ctx) {
		return fmt.Errorf("could not connect: %s", controller.Session().ErrorMessage)
	}
	if s := controller.Session(); s.State != domain.StateConnected {
		return fmt.Errorf("could not connect: %s", s.ErrorMessage)
	}
	room := controller.Room()
	fmt.Printf("Joined room %q as %s\n", room.Name(), room.LocalParticipant().DisplayName())

	// 4. Chat & Layout
	store := history.NewClient(config.ServerURL, log)
	sync := chatsync.New(log, room, store, config.Room)
	sync.SetOnMessage(func(msg domain.ChatMessage) {
		printMessage(config, msg)
	})
	sync.Attach()
	if err := sync.LoadHistory(ctx); err != nil {
		log.Warn("History unavailable", "error", err)
	}

	engine := layout.New(room, sync)
	engine.Attach()

	defer func() {
		engine.Detach()
		sync.Detach()
		controller.Close()
	}()

	// 5. Command loop
	fmt.Println("Type a message, or /help for commands.")
	lines := readLines()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-left:
			fmt.Println("Session ended.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := handle(ctx, config, controller, sync, engine, line); done {
				return nil
			}
		}
	}
}

// readLines pumps stdin into a channel so the loop can also watch the
// context and the leave signal.
func readLines() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}

func handle(ctx context.Context, config Config, controller *session.Controller,
	sync *chatsync.Sync, engine *layout.Engine, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := sync.Send(ctx, line); err != nil {
			fmt.Printf("Send failed: %v\n", err)
			return false
		}
		printMessage(config, domain.ChatMessage{
			Sender:    domain.LocalSenderMarker,
			Text:      line,
			Timestamp: time.Now().UnixMilli(),
			Color:     domain.LocalSendColor,
		})
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	switch cmd {
	case "help":
		fmt.Println("/history  /clear  /tiles  /move <from> <to>  /read  /camera on|off  /mic on|off  /screen on|off  /leave")
	case "history":
		printHistory(sync.Messages())
	case "clear":
		if err := sync.Clear(ctx); err != nil {
			fmt.Printf("Clear failed: %v\n", err)
		} else {
			fmt.Println("Chat history cleared.")
		}
	case "tiles":
		printTiles(engine)
	case "move":
		move(engine, arg)
	case "read":
		sync.MarkAllViewed()
	case "camera":
		toggle(ctx, controller, domain.KindCamera, arg)
	case "mic":
		toggle(ctx, controller, domain.KindMicrophone, arg)
	case "screen":
		toggle(ctx, controller, domain.KindScreenShare, arg)
	case "leave":
		return true
	default:
		fmt.Printf("Unknown command /%s\n", cmd)
	}
	return false
}

func printMessage(config Config, msg domain.ChatMessage) {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
	sender := msg.Sender
	if config.Colours && msg.Color != "" {
		sender = color.HEX(msg.Color).Sprint(sender)
	}
	fmt.Printf("[%s] %s: %s\n", ts, sender, msg.Text)
}

func printHistory(messages []domain.ChatMessage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Sender", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, msg := range messages {
		table.Append([]string{
			time.UnixMilli(msg.Timestamp).Format("15:04:05"),
			msg.Sender,
			msg.Text,
		})
	}
	table.Render()
}

func printTiles(engine *layout.Engine) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Track", "Participant", "Muted", "Unread", "Preview"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, tile := range engine.Tiles() {
		table.Append([]string{
			strconv.Itoa(tile.Position),
			string(tile.TrackID),
			tile.Track.Participant.DisplayName(),
			strconv.FormatBool(tile.Track.Muted),
			strconv.FormatBool(tile.Unread),
			tile.Preview,
		})
	}
	for _, tile := range engine.ScreenShareTiles() {
		table.Append([]string{
			strconv.Itoa(tile.Position),
			string(tile.TrackID),
			tile.Track.Participant.DisplayName() + " (screen)",
			strconv.FormatBool(tile.Track.Muted),
			"",
			"",
		})
	}
	table.Render()
}

// move reorders tiles by their positions as shown by /tiles.
func move(engine *layout.Engine, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		fmt.Println("Usage: /move <from> <to>")
		return
	}
	from, err1 := strconv.Atoi(fields[0])
	to, err2 := strconv.Atoi(fields[1])
	order := engine.Order()
	if err1 != nil || err2 != nil || from < 0 || from >= len(order) || to < 0 || to >= len(order) {
		fmt.Println("Positions out of range.")
		return
	}
	engine.Reorder(order[from], order[to])
}

func toggle(ctx context.Context, controller *session.Controller, kind domain.TrackKind, arg string) {
	enabled := arg == "on"
	if !enabled && arg != "off" {
		fmt.Println("Usage: on|off")
		return
	}
	room := controller.Room()
	if room == nil {
		fmt.Println("Not connected.")
		return
	}
	var err error
	switch kind {
	case domain.KindCamera:
		err = room.SetCameraEnabled(ctx, enabled)
	case domain.KindMicrophone:
		err = room.SetMicrophoneEnabled(ctx, enabled)
	case domain.KindScreenShare:
		err = room.SetScreenShareEnabled(ctx, enabled)
	}
	if err != nil {
		fmt.Printf("Toggle failed: %v\n", err)
	}
}
