package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dealledger/config"
	"dealledger/core/events"
	"dealledger/core/types"
	"dealledger/native/bank"
	"dealledger/native/deal"
	"dealledger/observability/logging"
	"dealledger/rpc"
	"dealledger/state"
	"dealledger/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("DEAL_ENV"))
	logger := logging.Setup("deald", env, &logging.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer func() {
		_ = db.Close()
	}()

	manager := state.NewManager(db)
	if err := manager.SetOwner(cfg.Owner()); err != nil {
		logger.Error("Failed to install owner", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := bank.NewLedger(manager)

	engine := deal.NewEngine()
	engine.SetState(manager)
	engine.SetRails(ledger)
	engine.SetRoles(manager)
	if err := engine.SetCommissionRate(cfg.DefaultCommissionRate); err != nil {
		logger.Error("Invalid default commission rate", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetEmitter(events.NewMulti(manager, &logEmitter{logger: logger}))

	server := rpc.NewServer(engine, ledger, manager, cfg.AllowFaucet)

	logger.Info("deal ledger ready",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("dataDir", cfg.DataDir),
		slog.Uint64("commissionRate", uint64(cfg.DefaultCommissionRate)),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// logEmitter mirrors every engine notification into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
		}
	}
	l.logger.Info("ledger event", attrs...)
}
