package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/blackjack-services/configs"
	archive "github.com/avvvet/blackjack-services/internal/db"
	"github.com/avvvet/blackjack-services/internal/gamesvc/broker"
	gameconfig "github.com/avvvet/blackjack-services/internal/gamesvc/config"
	"github.com/avvvet/blackjack-services/internal/gamesvc/db"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/avvvet/blackjack-services/internal/monitor"
	natscli "github.com/avvvet/blackjack-services/internal/nats"
	"github.com/avvvet/blackjack-services/internal/notify"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// ctl sweeps tables whose turn deadline passed, dealing stalled bets and
// standing idle seats.
// Several instances may run; claimed tables are skipped by the others.
func main() {
	cfg := gameconfig.Load()

	if cfg.StoreDriver == gameconfig.DriverMemory {
		log.Fatalf("%s service needs the postgres store; with STORE_DRIVER=memory gamesvc runs the sweeper itself", SERVICE_NAME)
	}

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	opts := []service.Option{
		service.WithTurnTimeout(cfg.TurnTimeout),
		service.WithMetrics(monitor.NewMetrics("blackjack_ctl")),
	}

	// rounds closed here are archived and alerted like the ones gamesvc closes
	if cfg.MongoURI != "" {
		mdb, err := archive.ConnectToDB(cfg.MongoURI)
		if err != nil {
			log.Errorf("round archive disabled: %v", err)
		} else if rounds, err := archive.NewRoundArchive(context.Background(), mdb, cfg.ArchiveRetention); err != nil {
			log.Errorf("round archive disabled: %v", err)
		} else {
			opts = append(opts, service.WithArchiver(rounds))
			log.Info("round archive enabled")
		}
	}

	if n := notify.FromEnv(); n != nil {
		opts = append(opts, service.WithNotifier(n, cfg.PayoutAlertThreshold))
	}

	st := store.NewPgStore(dbpool)
	ledgerService := service.NewLedgerService(st, cfg.StartingBalance)
	sessionService := service.NewSessionService(time.Now)
	gameService := service.NewGameService(st, ledgerService, sessionService, opts...)

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn, gameService, ledgerService, cfg.GameTopic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
		cancel()
	}()

	log.Infof("%s service sweeping every %s", SERVICE_NAME, cfg.SweepInterval)
	b.RunSweeper(ctx, cfg.SweepInterval)
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
