package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/zhouzirui/estate-desk/backend/internal/service/backend"
	"github.com/zhouzirui/estate-desk/backend/internal/service/realtime"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env loaded, using system environment: %v", err)
	}

	url := flag.String("url", os.Getenv("INBOX_WS_URL"), "transport endpoint (ws:// or wss://)")
	token := flag.String("token", os.Getenv("INBOX_TOKEN"), "operator token")
	tokenParam := flag.String("token-param", os.Getenv("INBOX_WS_TOKEN_PARAM"), "query parameter that also carries the token")
	rooms := flag.String("rooms", "", "comma separated session ids to join on every connect")
	sendTo := flag.String("send-to", "", "session id to send -text to once connected")
	text := flag.String("text", "", "operator message for -send-to")
	duration := flag.Duration("for", 0, "stop after this long (0 = until interrupted)")
	verbose := flag.Bool("v", false, "log transport internals")
	apiURL := flag.String("api", os.Getenv("INBOX_API_URL"), "REST base URL, used by -directory")
	directory := flag.Bool("directory", false, "print the session directory and exit")

	flag.Parse()

	if *directory {
		if *apiURL == "" {
			log.Fatal("set -api or INBOX_API_URL")
		}
		if err := printDirectory(*apiURL, *token); err != nil {
			log.Fatalf("directory failed: %v", err)
		}
		return
	}

	if *url == "" {
		flag.Usage()
		log.Fatal("set -url or INBOX_WS_URL")
	}
	if (*sendTo == "") != (strings.TrimSpace(*text) == "") {
		log.Fatal("-send-to and -text go together")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := realtime.DefaultOptions()
	opts.URL = *url
	opts.Token = *token
	opts.TokenParam = *tokenParam
	channel := realtime.NewChannel(logger, opts)

	joinList := lo.Uniq(lo.Compact(lo.Map(strings.Split(*rooms, ","), func(room string, _ int) string {
		return strings.TrimSpace(room)
	})))
	if *sendTo != "" && !lo.Contains(joinList, *sendTo) {
		joinList = append(joinList, *sendTo)
	}

	go func() {
		if err := channel.Run(ctx); err != nil {
			log.Printf("transport stopped: %v", err)
		}
	}()

	w := &watcher{channel: channel, rooms: joinList, sendTo: *sendTo, text: *text}
	w.watch(ctx)
}

type watcher struct {
	channel *realtime.Channel
	rooms   []string
	sendTo  string
	text    string
	sent    bool
}

func (w *watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("done")
			return
		case evt := <-w.channel.Events():
			log.Println(colorize(evt.Kind, describe(evt)))
			if evt.Kind == realtime.KindConnected {
				w.onConnected(ctx)
			}
		}
	}
}

func (w *watcher) onConnected(ctx context.Context) {
	for _, room := range w.rooms {
		if err := w.channel.JoinRoom(ctx, room); err != nil {
			log.Printf("join %s failed: %v", room, err)
			continue
		}
		log.Printf("joined %s", room)
	}

	if w.sendTo == "" || w.sent {
		return
	}
	if err := w.channel.SendAsAdmin(ctx, w.sendTo, w.text); err != nil {
		log.Printf("send to %s failed: %v", w.sendTo, err)
		return
	}
	w.sent = true
	log.Printf("sent to %s: %q", w.sendTo, w.text)
}

func describe(evt realtime.Event) string {
	switch evt.Kind {
	case realtime.KindSessionAnnounced:
		return fmt.Sprintf("%-12s session=%s name=%q", evt.Kind, evt.SessionID, evt.DisplayName)
	case realtime.KindRoster:
		return fmt.Sprintf("%-12s online=%v", evt.Kind, evt.Roster)
	case realtime.KindMessage:
		return fmt.Sprintf("%-12s session=%s [%s] %s: %s", evt.Kind, evt.SessionID, evt.Message.SentAt, evt.Message.Sender, evt.Message.Text)
	case realtime.KindDisconnected, realtime.KindConnectFailed:
		return fmt.Sprintf("%-12s err=%v", evt.Kind, evt.Err)
	default:
		return evt.Kind.String()
	}
}

func colorize(kind realtime.Kind, line string) string {
	switch kind {
	case realtime.KindConnected:
		return color.New(color.FgGreen).Render(line)
	case realtime.KindDisconnected, realtime.KindConnectFailed:
		return color.New(color.FgRed).Render(line)
	case realtime.KindMessage:
		return color.New(color.FgCyan).Render(line)
	default:
		return line
	}
}

func printDirectory(apiURL, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := backend.NewClient(slog.New(slog.DiscardHandler), backend.Options{BaseURL: apiURL, Token: token})
	entries, err := client.FetchDirectory(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Visitor", "Last activity", "Status"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, entry := range entries {
		table.Append([]string{entry.SessionID, entry.UserName, entry.LastActivity, entry.Status})
	}
	table.Render()
	fmt.Printf("%d session(s)\n", len(entries))
	return nil
}
