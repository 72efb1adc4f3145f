// Command viewer follows one player's territory over the live channel and
// prints a line whenever the local view changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"hexcolony/internal/client/api"
	"hexcolony/internal/client/conn"
	"hexcolony/internal/client/localstore"
	"hexcolony/internal/client/reconcile"
	"hexcolony/internal/client/session"
	"hexcolony/internal/config"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/protocol"
)

const (
	envPlayerID  = "HEXCOLONY_PLAYER_ID"
	envPlayerKey = "HEXCOLONY_PLAYER_KEY"
)

type options struct {
	apiURL   string
	wsURL    string
	id       string
	key      string
	register bool
	found    string
	color    string
	startQ   int
	startR   int
	distance int
	cache    string
	every    time.Duration
	logLevel string
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	var o options
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.apiURL, "api", "http://localhost:8080", "HTTP API base URL")
	fs.StringVar(&o.wsURL, "ws", "ws://localhost:8081/ws", "real-time channel URL")
	fs.StringVar(&o.id, "id", getenv(envPlayerID), "player id")
	fs.StringVar(&o.key, "key", getenv(envPlayerKey), "player key")
	fs.BoolVar(&o.register, "register", false, "register a new player first")
	fs.StringVar(&o.found, "found", "", "found a colony with this name")
	fs.StringVar(&o.color, "color", "#3366ff", "colony color")
	fs.IntVar(&o.startQ, "q", 0, "start tile q")
	fs.IntVar(&o.startR, "r", 0, "start tile r")
	fs.IntVar(&o.distance, "distance", 1, "view distance")
	fs.StringVar(&o.cache, "cache", "", "sqlite cache path (empty disables)")
	fs.DurationVar(&o.every, "every", time.Second, "print interval")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if !o.register && (o.id == "" || o.key == "") {
		return options{}, errors.New("need -id and -key, or -register")
	}
	if o.distance < 0 {
		return options{}, fmt.Errorf("negative view distance %d", o.distance)
	}
	if o.every <= 0 {
		o.every = time.Second
	}
	return o, nil
}

func main() {
	o, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("viewer: %v", err)
	}
	logger := config.LogConfig{Level: o.logLevel, Format: "text"}.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, logger, os.Stdout); err != nil {
		log.Fatalf("viewer: %v", err)
	}
}

func run(ctx context.Context, o options, logger *slog.Logger, out io.Writer) error {
	client, err := api.New(o.apiURL, api.Credentials{PlayerID: o.id, PlayerKey: o.key}, 10*time.Second)
	if err != nil {
		return err
	}
	if o.register {
		reg, err := client.Register(ctx)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		o.id, o.key = reg.PlayerID, reg.PlayerKey
		fmt.Fprintf(out, "registered %s=%s %s=%s\n", envPlayerID, o.id, envPlayerKey, o.key)
		client = client.WithCredentials(api.Credentials{PlayerID: o.id, PlayerKey: o.key})
	}
	if o.found != "" {
		start := hex.Axial(o.startQ, o.startR)
		_, err := client.FoundColony(ctx, o.found, o.color, start)
		var apiErr *api.Error
		switch {
		case err == nil:
			fmt.Fprintf(out, "founded %q at %s\n", o.found, start.ID())
		case errors.As(err, &apiErr) && apiErr.Code == protocol.KindAlreadyExists:
			logger.Info("colony already exists", "player", o.id)
		default:
			return fmt.Errorf("found colony: %w", err)
		}
	}

	var cache session.Cache
	if o.cache != "" {
		store, err := localstore.Open(o.cache)
		if err != nil {
			return err
		}
		defer store.Close()
		cache = store
	}

	header := http.Header{}
	header.Set(protocol.HeaderPlayerID, o.id)
	header.Set(protocol.HeaderPlayerKey, o.key)
	mgr := conn.NewManager(conn.Options{URL: o.wsURL, Header: header, Logger: logger.With("component", "conn")})
	sess, err := session.New(client, mgr, cache, session.Options{
		LocalID:      o.id,
		ViewDistance: o.distance,
		Logger:       logger.With("component", "session"),
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() { errc <- sess.Run(ctx) }()
	go func() { errc <- mgr.Run(ctx) }()

	tick := time.NewTicker(o.every)
	defer tick.Stop()
	var last string
	for {
		select {
		case <-ctx.Done():
			mgr.Close()
			for range 2 {
				if err := <-errc; err != nil {
					return err
				}
			}
			return nil
		case <-tick.C:
			line := summarize(sess.Snapshot(), sess.Stats())
			if line != last {
				fmt.Fprintln(out, line)
				last = line
			}
		}
	}
}

// summarize renders the view as one line: owned ids, then frontier tiles
// grouped by controller.
func summarize(snap reconcile.Snapshot, stats session.Stats) string {
	var b strings.Builder
	owned := snap.OwnedIDs()
	fmt.Fprintf(&b, "owned=%d [", len(owned))
	for i, id := range owned {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(id))
	}
	b.WriteString("]")

	held := map[string]int{}
	unexplored := 0
	for _, t := range snap.Viewable {
		switch {
		case t.ControllerUID != "":
			held[t.ControllerUID]++
		case t.Type == "":
			unexplored++
		}
	}
	fmt.Fprintf(&b, " viewable=%d unexplored=%d", len(snap.Viewable), unexplored)
	uids := make([]string, 0, len(held))
	for uid := range held {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		fmt.Fprintf(&b, " %s:%d", uid, held[uid])
	}
	fmt.Fprintf(&b, " catchups=%d discarded=%d", stats.CatchUpsApplied, stats.CatchUpsDiscarded)
	return b.String()
}
