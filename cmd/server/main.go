package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"agora/pkg/platform/tx"

	"agora/internal/achievements"
	achievementstore "agora/internal/achievements/store"
	"agora/internal/citizen"
	"agora/internal/citizen/permcache"
	citizenservice "agora/internal/citizen/service"
	identitystore "agora/internal/citizen/store/identity"
	permissionstore "agora/internal/citizen/store/permission"
	engagementservice "agora/internal/engagement/service"
	commentstore "agora/internal/engagement/store/comment"
	likestore "agora/internal/engagement/store/like"
	"agora/internal/events"
	"agora/internal/platform/config"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/logger"
	"agora/internal/platform/metrics"
	"agora/internal/platform/postgres"
	platformredis "agora/internal/platform/redis"
	referendumservice "agora/internal/referendum/service"
	categorystore "agora/internal/referendum/store/category"
	choicestore "agora/internal/referendum/store/choice"
	referendumstore "agora/internal/referendum/store/referendum"
	httptransport "agora/internal/transport/http"
	votingservice "agora/internal/voting/service"
	ballotstore "agora/internal/voting/store/ballot"
	tokenstore "agora/internal/voting/store/token"
	"agora/internal/worker"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	var cache *permcache.Cache
	if redisClient != nil {
		cache = permcache.New(redisClient.Client)
		defer redisClient.Close()
	}

	m := metrics.New()
	runner := tx.NewSQLRunner(db)

	referendums := referendumstore.NewPostgres(db)
	categories := categorystore.NewPostgres(db)
	choices := choicestore.NewPostgres(db)
	ballots := ballotstore.NewPostgres(db)
	tokens := tokenstore.NewPostgres(db)
	identities := identitystore.NewPostgres(db)
	permissions := permissionstore.NewPostgres(db)
	unlocks := achievementstore.NewPostgres(db)
	likes := likestore.NewPostgres(db)
	comments := commentstore.NewPostgres(db)

	citizens := citizenservice.New(identities, permissions,
		citizenservice.WithLogger(log),
		citizenservice.WithMetrics(m),
		citizenservice.WithTxRunner(runner),
		citizenservice.WithCache(cache),
		citizenservice.WithIdentityValidity(cfg.IdentityValidity),
	)

	engine := achievements.NewEngine(unlocks,
		achievements.WithLogger(log),
		achievements.WithMetrics(m),
	)

	bus := events.NewBus(log,
		events.Registration{
			Observer: citizen.NewIdentityObserver(citizens),
			Kinds:    []events.Kind{events.KindIdentityConfirmed},
		},
		events.Registration{
			Observer: engine,
			Kinds: []events.Kind{
				events.KindReferendumSaved,
				events.KindTokenSaved,
				events.KindIdentityConfirmed,
				events.KindCommentSaved,
				events.KindLikeSaved,
			},
		},
	)

	referendumSvc := referendumservice.New(referendums, categories, choices, ballots,
		referendumservice.WithLogger(log),
		referendumservice.WithMetrics(m),
		referendumservice.WithNotifier(bus),
		referendumservice.WithTxRunner(runner),
		referendumservice.WithMinEventStartDelay(cfg.MinEventDelay),
	)
	votingSvc := votingservice.New(tokens, ballots, referendums, choices, citizens,
		votingservice.WithLogger(log),
		votingservice.WithMetrics(m),
		votingservice.WithNotifier(bus),
		votingservice.WithTxRunner(runner),
	)
	engagementSvc := engagementservice.New(likes, comments, referendums,
		engagementservice.WithLogger(log),
		engagementservice.WithNotifier(bus),
	)

	router := httptransport.NewRouter(log,
		httptransport.NewReferendumHandler(referendumSvc, log),
		httptransport.NewVotingHandler(votingSvc, log),
		httptransport.NewCitizenHandler(citizens, bus, log),
		httptransport.NewEngagementHandler(engagementSvc, log),
		httptransport.NewAchievementHandler(engine, log),
	)
	srv := httpserver.New(cfg.Addr, router)
	sweeper := worker.NewSweeper(citizens, cfg.SweepInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting agora", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
