// Demo CLI peer: registers a user, places and answers calls from the
// terminal. Media is synthetic, the point is exercising signaling end
// to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/client"
	"github.com/mzholl/callwire/internal/client/notify"
	"github.com/mzholl/callwire/internal/config"
	"github.com/mzholl/callwire/internal/domain"
)

type flagDirectory struct {
	self *domain.User
}

func (d flagDirectory) Lookup(_ context.Context, _ domain.UserID) (*domain.User, error) {
	return d.self, nil
}

func main() {
	server := flag.String("server", "http://localhost:8080", "signaling server base URL")
	user := flag.String("user", "", "user id to register as")
	name := flag.String("name", "", "display name (defaults to user id)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *user == "" || len(*user) > domain.MaxUserIDLen {
		fmt.Fprintln(os.Stderr, "usage: client -user <id> [-server url] [-name display-name]")
		os.Exit(2)
	}
	if *name == "" {
		*name = *user
	}
	self, err := domain.NewUser(*name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid display name:", err)
		os.Exit(2)
	}
	self.ID = domain.UserID(*user)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	channel, err := notify.New(filepath.Join(cacheDir, "callwire", *user))
	if err != nil {
		log.Fatal().Err(err).Msg("notify channel")
	}
	defer channel.Close()

	wsURL := "ws" + strings.TrimPrefix(*server, "http") + "/api/ws/signal"
	sock := client.NewSocket(wsURL, domain.UserID(*user), cfg.ReconnectInitial, cfg.ReconnectMax)

	records := client.NewHTTPRecords(*server)
	media := client.NewSynthSource()
	opts := client.EngineOptions{ReadyTimeout: cfg.ReadyTimeout, TrackLiveTimeout: cfg.TrackLiveTimeout}
	mgr := client.NewManager(sock, records, flagDirectory{self: self}, channel, media, self.ID, opts)

	mgr.OnIncoming(func(rec notify.Record) {
		fmt.Printf("\n📞 incoming call from %s (%s): type 'answer' or 'reject'\n> ", rec.Name, rec.From)
	})
	mgr.OnEnded(func(reason string) {
		fmt.Printf("\ncall ended (%s)\n> ", reason)
	})
	mgr.OnError(func(msg string) {
		fmt.Printf("\ncall error: %s\n> ", msg)
	})
	channel.Subscribe(func(rec *notify.Record) {
		if rec == nil {
			fmt.Print("\nring dismissed in another window\n> ")
		}
	})

	go sock.Run(ctx)

	fmt.Println("commands: call <user> | answer | reject | hangup | mute | video | share | quit")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}
		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("call <user>")
				break
			}
			if _, err := mgr.PlaceCall(ctx, domain.UserID(fields[1])); err != nil {
				fmt.Println("place call:", err)
			}
		case "answer":
			if err := mgr.Answer(ctx); err != nil {
				fmt.Println("answer:", err)
			}
		case "reject":
			if err := mgr.Reject(ctx); err != nil {
				fmt.Println("reject:", err)
			}
		case "hangup":
			mgr.HangUp()
		case "mute":
			if eng := mgr.Engine(); eng != nil {
				fmt.Println("audio enabled:", eng.ToggleAudio())
			}
		case "video":
			if eng := mgr.Engine(); eng != nil {
				fmt.Println("video enabled:", eng.ToggleVideo())
			}
		case "share":
			if eng := mgr.Engine(); eng != nil {
				if err := eng.StartScreenShare(ctx); err != nil {
					fmt.Println("share:", err)
				}
			}
		case "quit":
			mgr.HangUp()
			return
		default:
			fmt.Println("unknown command")
		}
		fmt.Print("> ")
	}
}
