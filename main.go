package main

import (
	"cedabot/app/client/kapso"
	"cedabot/app/client/payment"
	"cedabot/app/client/postgres"
	"cedabot/app/client/redisdb"
	"cedabot/app/config"
	"cedabot/app/service/cart"
	"cedabot/app/service/catalog"
	"cedabot/app/service/conversation"
	"cedabot/app/service/executor"
	"cedabot/app/service/intent"
	"cedabot/app/service/pending"
	"cedabot/app/service/planner"
	"cedabot/app/service/queue"
	"cedabot/app/service/recent"
	"cedabot/app/service/resolver"
	"cedabot/app/service/webhook"
	"cedabot/app/util/mylog"
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, postgres.NewClient)
	do.Provide(di, redisdb.NewClient)
	do.Provide(di, kapso.NewClient)
	do.Provide(di, payment.NewClient)
	do.Provide(di, cart.New)
	do.Provide(di, recent.New)
	do.Provide(di, pending.New)
	do.Provide(di, catalog.New)
	do.Provide(di, intent.New)
	do.Provide(di, resolver.New)
	do.Provide(di, planner.New)
	do.Provide(di, executor.New)
	do.Provide(di, conversation.New)
	do.Provide(di, queue.New)
	do.Provide(di, webhook.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := do.MustInvoke[*webhook.Service](di).Start(); err != nil {
			log.Fatalf("webhook server failed: %v", err)
		}
	}()

	<-appCtx.Done()
}
