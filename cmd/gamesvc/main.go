package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/blackjack-services/configs"
	archive "github.com/avvvet/blackjack-services/internal/db"
	"github.com/avvvet/blackjack-services/internal/gamesvc/broker"
	gameconfig "github.com/avvvet/blackjack-services/internal/gamesvc/config"
	"github.com/avvvet/blackjack-services/internal/gamesvc/db"
	handlers "github.com/avvvet/blackjack-services/internal/gamesvc/handlers"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/avvvet/blackjack-services/internal/monitor"
	nats "github.com/avvvet/blackjack-services/internal/nats"
	"github.com/avvvet/blackjack-services/internal/notify"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := gameconfig.Load()

	var st store.Store
	switch cfg.StoreDriver {
	case gameconfig.DriverMemory:
		log.Warn("using in-memory store, all state is lost on restart")
		st = store.NewMemoryStore()
	default:
		// pg connection
		dbpool, err := db.Connect(cfg.DBUrl)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		log.Printf("pg connection established successfully")

		if err := db.Migrate(context.Background(), dbpool); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		st = store.NewPgStore(dbpool)
	}

	metrics := monitor.NewMetrics("blackjack")
	opts := []service.Option{
		service.WithTurnTimeout(cfg.TurnTimeout),
		service.WithMetrics(metrics),
	}

	var rounds *archive.RoundArchive
	if cfg.MongoURI != "" {
		mdb, err := archive.ConnectToDB(cfg.MongoURI)
		if err != nil {
			log.Errorf("round archive disabled: %v", err)
		} else if rounds, err = archive.NewRoundArchive(context.Background(), mdb, cfg.ArchiveRetention); err != nil {
			log.Errorf("round archive disabled: %v", err)
		} else {
			opts = append(opts, service.WithArchiver(rounds))
			log.Info("round archive enabled")
		}
	}

	if n := notify.FromEnv(); n != nil {
		opts = append(opts, service.WithNotifier(n, cfg.PayoutAlertThreshold))
	}

	ledgerService := service.NewLedgerService(st, cfg.StartingBalance)
	sessionService := service.NewSessionService(time.Now)
	gameService := service.NewGameService(st, ledgerService, sessionService, opts...)

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// instances share the request load through the queue group
	b := broker.NewBroker(n.Conn, gameService, ledgerService, cfg.GameTopic)
	sub, err := b.QueueSubscribe(cfg.SocketTopic, cfg.QueueGroup)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	// the memory store is private to this process, so ctl cannot sweep it
	if cfg.StoreDriver == gameconfig.DriverMemory {
		go b.RunSweeper(sweepCtx, cfg.SweepInterval)
		log.Infof("sweeping overdue turns every %s", cfg.SweepInterval)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit, err := strconv.Atoi(os.Getenv("RATE_LIMIT"))
	if err != nil {
		log.Warnf("Invalid RATE_LIMIT value, using 100: %v", err)
		rateLimit = 100
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(gameService, ledgerService, metrics)
	h.InitAuth()
	if rounds != nil {
		h.SetRoundHistory(rounds)
	}
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("GAME_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
