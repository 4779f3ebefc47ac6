// Command agent is the console support client. It attaches to a chat
// session, relays messages, and can escalate to a video call or join one
// announced on the channel.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/adapters/api"
	"github.com/averko/supportline/internal/adapters/rtc"
	"github.com/averko/supportline/internal/adapters/term"
	"github.com/averko/supportline/internal/adapters/ws"
	"github.com/averko/supportline/internal/app"
	"github.com/averko/supportline/internal/config"
	"github.com/averko/supportline/internal/domain"
	"github.com/averko/supportline/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	identity, err := domain.NewIdentity(cfg.Identity)
	if err != nil {
		log.Fatal().Err(err).Msg("bad identity")
	}
	role, err := domain.ParseRole(cfg.Role)
	if err != nil {
		log.Fatal().Err(err).Msg("bad role")
	}

	client := api.New(cfg.APIBase)
	dialer := &ws.Dialer{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod}

	sess, err := pickSession(ctx, client, identity)
	if err != nil {
		log.Fatal().Err(err).Msg("no session to attach")
	}
	log.Info().Str("session", string(sess.ID)).Str("title", sess.Title).Msg("attaching")

	ctrl := app.NewController(dialer, cfg.WSBase)
	if history, err := client.ListMessages(ctx, sess.ID); err == nil {
		ctrl.PreloadHistory(history)
		for _, m := range history {
			printMessage(m)
		}
	}

	surface := term.NewSurface()
	provider := rtc.NewProvider(cfg.WSBase, dialer, identity)
	call := media.NewManager(provider, surface, identity)
	call.OnLeave(func() { fmt.Println("* call ended") })
	call.OnScreenShareChange(func(active bool) {
		fmt.Printf("* screen share: %v\n", active)
	})

	flow := app.NewJoinFlow(client)
	escalator := app.NewEscalator(client, ctrl)

	ctrl.OnMessage(printMessage)
	ctrl.OnMeetingStarted(func(id domain.LinkID) {
		fmt.Printf("* meeting started: %s\n", id)
		if role != domain.RoleAgent {
			return
		}
		// The customer accepted the invite; follow them into the room.
		go func() {
			if err := joinMeeting(ctx, flow, call, id, identity); err != nil &&
				!errors.Is(err, media.ErrCallActive) {
				log.Error().Err(err).Str("link", string(id)).Msg("auto-join failed")
			}
		}()
	})

	if err := ctrl.Open(ctx, sess.ID, identity, role); err != nil {
		log.Fatal().Err(err).Msg("channel open failed")
	}
	defer ctrl.Close()
	defer call.Leave()

	fmt.Println("connected; /who /invite /join <link> /mute /camera /share /unshare /leave /close /quit")
	repl(ctx, ctrl, escalator, flow, call, client, sess.ID, identity)
}

// pickSession returns the first active session, creating one when the
// backend has none.
func pickSession(ctx context.Context, client *api.Client, identity domain.Identity) (domain.Session, error) {
	list, err := client.ListSessions(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	for _, s := range list {
		if s.Active {
			return s, nil
		}
	}
	return client.CreateSession(ctx, "Support session", identity, "")
}

func joinMeeting(ctx context.Context, flow *app.JoinFlow, call *media.Manager, id domain.LinkID, identity domain.Identity) error {
	access, err := flow.Resolve(ctx, id, identity)
	if err != nil {
		return err
	}
	return call.Join(ctx, access.Token, access.Room)
}

func printMessage(m domain.Message) {
	fmt.Printf("[%s] %s: %s\n", m.Role, m.Sender, m.Text)
}

func repl(ctx context.Context, ctrl *app.Controller, escalator *app.Escalator, flow *app.JoinFlow, call *media.Manager, client *api.Client, session domain.SessionID, identity domain.Identity) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit":
			return
		case "/who":
			for _, id := range ctrl.Presence().Online() {
				fmt.Println("*", id)
			}
		case "/close":
			if err := client.CloseSession(ctx, session); err != nil {
				fmt.Println("! close:", err)
			}
			return
		case "/invite":
			link, err := escalator.CreateAndAnnounce(ctx, session, identity)
			if err != nil {
				fmt.Println("! invite:", err)
				continue
			}
			fmt.Println("* invite sent:", link.ID)
		case "/join":
			if arg == "" {
				fmt.Println("! usage: /join <link>")
				continue
			}
			if err := joinMeeting(ctx, flow, call, domain.LinkID(arg), identity); err != nil {
				fmt.Println("! join:", err)
			}
		case "/mute":
			on, err := call.ToggleMute()
			reportToggle("mic enabled", on, err)
		case "/camera":
			on, err := call.ToggleCamera()
			reportToggle("camera enabled", on, err)
		case "/share":
			if err := call.StartScreenShare(ctx); err != nil {
				fmt.Println("! share:", err)
			}
		case "/unshare":
			call.StopScreenShare()
		case "/leave":
			call.Leave()
		default:
			if err := ctrl.SendMessage(line); err != nil {
				fmt.Println("! send:", err)
			}
		}
	}
}

func reportToggle(what string, on bool, err error) {
	if err != nil {
		fmt.Println("!", what+":", err)
		return
	}
	fmt.Printf("* %s: %v\n", what, on)
}
