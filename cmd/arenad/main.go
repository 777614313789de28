// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command arenad runs one arena game server instance: the tick loop, its
// client transport, and (optionally) this server's fleet-coordination and
// central-directory roles. Grounded on server_main/main.go's flag-parsed
// entrypoint, replacing its bare `flag` package with spf13/cobra+pflag per
// SPEC_FULL.md's ambient configuration section, and its single in-process
// Hub with this module's explicit World/session.Repo/arena.Loop/
// transport.Server wiring.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/SoftbearStudios/mk48arena/internal/arena"
	"github.com/SoftbearStudios/mk48arena/internal/catalog"
	"github.com/SoftbearStudios/mk48arena/internal/directory"
	"github.com/SoftbearStudios/mk48arena/internal/fleet"
	"github.com/SoftbearStudios/mk48arena/internal/session"
	"github.com/SoftbearStudios/mk48arena/internal/storage"
	"github.com/SoftbearStudios/mk48arena/internal/terrain"
	"github.com/SoftbearStudios/mk48arena/internal/transport"
	"github.com/SoftbearStudios/mk48arena/internal/world"
)

// gameID identifies this game to the session layer (distinguishes one
// Softbear-style arena game from a sibling game sharing the same fleet
// infrastructure, per session.Repo.CreateSession's gameID parameter).
const gameID = "mk48arena"

// homeArenaID is the single arena this process hosts. A production
// deployment scales horizontally by process, not by multiplexing arenas
// within one; every session/world/loop in this binary is keyed to it.
const homeArenaID = session.ArenaID(1)

// authenticatePerSecond/authenticateBurst bound Registry's per-IP
// authenticate rate limiter (spec.md §7's "authenticate storm" capacity
// error). No specific number is named in spec.md; chosen generously enough
// that a reconnecting browser tab never trips it under normal use.
const (
	authenticatePerSecond = 2.0
	authenticateBurst     = 5
)

type options struct {
	auth           string
	botLevel       int
	port           int
	players        int
	maxConnections int
	region         string

	catalogPath   string
	stage         string
	domain        string
	awsRegion     string
	natsURL       string
	directoryPort int
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:   "arenad",
		Short: "runs one arena game server instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.auth, "auth", "", "moderator auth code accepted on the websocket endpoint's auth query parameter")
	flags.IntVar(&opts.botLevel, "bot-level", 1, "maximum level for bots to spawn as (reserved; no bot AI is implemented by this binary)")
	flags.IntVar(&opts.port, "port", 8192, "http/websocket service port")
	flags.IntVar(&opts.players, "players", 40, "minimum number of players the world is sized for")
	flags.IntVar(&opts.maxConnections, "max-connections", 256, "maximum number of inbound TCP connections")
	flags.StringVar(&opts.region, "region", "", "this server's fleet region id (enables fleet coordination together with --domain)")
	flags.StringVar(&opts.catalogPath, "catalog", "", "path to a declarative entity catalog JSON file; empty uses the embedded default")
	flags.StringVar(&opts.stage, "stage", "dev", "deployment stage; namespaces DynamoDB tables and the offline sqlite file")
	flags.StringVar(&opts.domain, "domain", "", "fleet DNS domain this server publishes itself under via Route53")
	flags.StringVar(&opts.awsRegion, "aws-region", "", "AWS region; enables DynamoDB storage and Route53 DNS when set, otherwise sqlite and no fleet DNS")
	flags.StringVar(&opts.natsURL, "nats-url", "", "NATS server URL the central directory republishes player/team/liveboard/leaderboard deltas to")
	flags.IntVar(&opts.directoryPort, "directory-port", 0, "if nonzero, also serve the central session directory's HTTP API on this port")

	root.AddCommand(newCatalogCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCatalogCmd is SPEC_FULL.md's dev subcommand: re-parse a declarative
// entity source and report whether it's well-formed, without starting a
// server. Grounded on internal/catalog's own Load/Parse, exercised here
// standalone the way `go vet`/linters are run outside the main binary.
func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "entity catalog utilities"}
	cmd.AddCommand(&cobra.Command{
		Use:   "reload <path>",
		Short: "re-parses a declarative entity catalog source and reports the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Load(args[0])
			if err != nil {
				return fmt.Errorf("catalog reload: %w", err)
			}
			fmt.Printf("%s: parsed ok (%d entity types)\n", args[0], c.TypeCount())
			return nil
		},
	})
	return cmd
}

func run(opts *options) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("arenad: build logger: %w", err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.catalogPath != "" {
		c, err := catalog.Load(opts.catalogPath)
		if err != nil {
			return fmt.Errorf("arenad: load catalog: %w", err)
		}
		catalog.Install(c)
		watcher, err := catalog.Watch(opts.catalogPath, sugar)
		if err != nil {
			return fmt.Errorf("arenad: watch catalog: %w", err)
		}
		defer watcher.Close()
	}

	db, err := openDatabase(opts)
	if err != nil {
		return fmt.Errorf("arenad: open storage: %w", err)
	}

	radius := world.RadiusOf(opts.players)
	w := world.New(radius, terrain.New(terrain.NewDefaultGenerator(), radius))

	sessions := session.NewRepo()
	selfID := session.ServerID(1)
	sessions.NewArena(homeArenaID, gameID, selfID)

	registry := arena.NewRegistry(authenticatePerSecond, authenticateBurst)
	leaderboard := arena.NewLeaderboard(db, gameID)
	loop := arena.NewLoop(w, sessions, registry, homeArenaID, leaderboard, sugar)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go loop.Run(loopCtx)

	inviteKey := []byte(opts.auth)
	if len(inviteKey) == 0 {
		inviteKey = []byte(gameID) // dev fallback so Invitation still round-trips without --auth set
	}

	server := &transport.Server{
		Loop:      loop,
		Registry:  registry,
		Sessions:  sessions,
		ArenaID:   homeArenaID,
		GameID:    gameID,
		AuthCode:  opts.auth,
		InviteKey: inviteKey,
		Log:       sugar,
	}

	var coordinator *fleet.Coordinator
	if opts.region != "" && opts.domain != "" {
		coordinator, err = startCoordinator(ctx, opts, selfID, sugar, loop)
		if err != nil {
			return fmt.Errorf("arenad: start fleet coordinator: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.ServeWebsocket)
	if coordinator != nil {
		// Fleet mode: /status.json carries the richer Coordinator report
		// (region, redirect target, player count) siblings probe for.
		mux.HandleFunc("/status.json", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, coordinator.StatusJSON())
		})
	} else {
		mux.HandleFunc("/status.json", server.ServeStatus)
	}

	if opts.directoryPort != 0 {
		if err := serveDirectory(ctx, opts, db, sugar); err != nil {
			return fmt.Errorf("arenad: start directory: %w", err)
		}
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.port))
	if err != nil {
		return fmt.Errorf("arenad: listen: %w", err)
	}
	l = netutil.LimitListener(l, opts.maxConnections)

	httpServer := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	sugar.Infow("arenad started", "port", opts.port, "players", opts.players, "radius", radius)
	if err := httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("arenad: serve: %w", err)
	}
	return nil
}

// openDatabase picks DynamoDB when --aws-region is set (production/cloud
// mode), otherwise an offline sqlite file, mirroring server_main/main.go's
// `cloud.New` / `server.Offline{}` fallback at the storage.Database seam.
func openDatabase(opts *options) (storage.Database, error) {
	if opts.awsRegion != "" {
		sess, err := awssession.NewSessionWithOptions(awssession.Options{SharedConfigState: awssession.SharedConfigEnable})
		if err != nil {
			return nil, fmt.Errorf("open aws session: %w", err)
		}
		return storage.NewDynamoDBDatabase(sess, opts.stage)
	}
	return storage.OpenSQLite(fmt.Sprintf("file:%s-%s.db?cache=shared", gameID, opts.stage))
}

// startCoordinator wires internal/fleet's Coordinator against Route53 and
// the embedded GeoIP table, reporting this server's own player count each
// probe cycle by reading the Loop's World.
func startCoordinator(ctx context.Context, opts *options, selfID session.ServerID, log *zap.SugaredLogger, loop *arena.Loop) (*fleet.Coordinator, error) {
	sess, err := awssession.NewSessionWithOptions(awssession.Options{SharedConfigState: awssession.SharedConfigEnable})
	if err != nil {
		return nil, fmt.Errorf("open aws session: %w", err)
	}
	dns := fleet.NewRoute53DNS(sess, opts.domain)
	geo := fleet.NewEmbeddedGeoIP()

	selfIP, err := selfOutboundIP()
	if err != nil {
		return nil, err
	}

	advertise := func() fleet.Advertisement {
		return fleet.Advertisement{
			ServerID:    selfID,
			Region:      fleet.RegionID(opts.region),
			PlayerCount: len(loop.World.Players()),
		}
	}

	c := fleet.NewCoordinator(selfID, fleet.RegionID(opts.region), selfIP, opts.domain, dns, geo, advertise, log)
	go c.Run(ctx)
	return c, nil
}

// serveDirectory starts internal/directory's own HTTP surface when
// --directory-port is set, letting one process double as the fleet's
// central session/team/leaderboard directory (spec.md's C10). Grounded on
// the same storage.Database and NATS publisher this process already opened
// for its own arena.
func serveDirectory(ctx context.Context, opts *options, db storage.Database, log *zap.SugaredLogger) error {
	var pub directory.Publisher
	if opts.natsURL != "" {
		p, err := directory.NewNATSPublisher(opts.natsURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		pub = p
	}

	d := directory.New(db, pub, log)
	go d.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions/lookup", func(w http.ResponseWriter, r *http.Request) {
		arenaRaw, sessionRaw := r.URL.Query().Get("arena"), r.URL.Query().Get("session")
		arenaID, err1 := strconv.ParseUint(arenaRaw, 10, 32)
		sessionID, err2 := strconv.ParseUint(sessionRaw, 10, 64)
		if err1 != nil || err2 != nil {
			http.Error(w, "arena and session query parameters must be integers", http.StatusBadRequest)
			return
		}
		item, ok, err := d.Lookup(r.Context(), session.ArenaID(arenaID), session.SessionID(sessionID))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, item)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", opts.directoryPort), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("directory server stopped", "error", err)
		}
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// selfOutboundIP discovers this host's own routable IP the cheap way: the
// local address a dummy UDP "connection" would use, avoiding a dependency
// on a cloud metadata endpoint this module has no stand-in for.
func selfOutboundIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, fmt.Errorf("arenad: discover self IP: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}
