package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/groupwarden/groupwarden/internal/bot"
	"github.com/groupwarden/groupwarden/internal/config"
	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/db/sqlite"
	"github.com/groupwarden/groupwarden/internal/handlers"
	"github.com/groupwarden/groupwarden/internal/infra"
	"github.com/groupwarden/groupwarden/internal/lifecycle"
	"github.com/groupwarden/groupwarden/internal/observability"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.GwFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "groupwarden.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer dbClient.Close()

	service := bot.NewService(botAPI, dbClient)

	bot.RegisterUpdateHandler("antispam", handlers.NewAntispam(service))
	bot.RegisterUpdateHandler("admin", handlers.NewAdmin(service))

	observability.Init()

	runtime := lifecycle.NewRuntime(db.NewSweeper(dbClient, 10*time.Minute))
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start background components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("background components stopped dirty")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return observability.Serve(gctx, cfg.MetricsAddr)
	})

	g.Go(func() error {
		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service)

		updateChan, errorChan := bot.GetUpdatesChans(gctx, botAPI, updateConfig)

		for {
			select {
			case err := <-errorChan:
				return err
			case update := <-updateChan:
				infra.GoRecoverable(1, "update_processing", func() {
					if err := updateProcessor.Process(gctx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				})
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Errorln("no more updates")
	}
}
