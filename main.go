package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/controller"
	"perpexecutor/src/database"
	"perpexecutor/src/delegate"
	"perpexecutor/src/ledger"
	"perpexecutor/src/pnl"
	"perpexecutor/src/pricefeed"
	"perpexecutor/src/relay"
	"perpexecutor/src/server"
	"perpexecutor/src/settings"
	"perpexecutor/src/storage"
	"perpexecutor/src/trade"
	"perpexecutor/src/txbuilder"
	"perpexecutor/src/txcache"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	relayCfg := relay.GetConfig()
	registry := relay.NewRegistry(
		relay.NewGelatoClient(relayCfg.GelatoAPIKey, relayCfg.GelatoBaseURL),
		relay.NewBiconomyClient(relayCfg.BiconomyAPIKey, relayCfg.BiconomyBaseURL),
		relay.NewRPCClient(relayCfg.RPCURL, relayCfg.RPCFromAddress),
	)
	if err := registry.SetActive(relay.ProviderType(relayCfg.ActiveProvider)); err != nil {
		logger.WithError(err).Warn("Configured active provider not usable, keeping first configured")
	}
	relays := relay.NewService(registry, relayCfg.SubmitTimeout)

	builder := txbuilder.NewBuilder(txbuilder.GetConfig())
	store := trade.NewStore()
	cache := txcache.New()
	prices := pricefeed.NewClient(pricefeed.GetConfig())
	engine := pnl.NewEngine(pnl.GetConfig(), prices, store)

	history := ledger.New(storage.NewStore(database.MainDB, "ledger"))
	delegates := delegate.NewManager(storage.NewStore(database.MainDB, "delegate"), builder)
	prefs := settings.NewManager(storage.NewStore(database.MainDB, "settings"))

	trades := controller.NewTradeController(
		store, cache, relays, builder, history, delegates, prices, engine,
	)

	deps := server.Deps{
		Registry:   registry,
		Store:      store,
		History:    history,
		Controller: trades,
		Settings:   prefs,
		Delegates:  delegates,
		Monitor:    engine,
	}

	serverCfg := server.GetConfig()
	server.StartServer(serverCfg.Port, deps)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
