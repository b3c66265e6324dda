package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/oarkflow/botguard"
)

func main() {
	var (
		addr         = flag.String("addr", envOr("BOTGUARD_ADDR", ":8080"), "listen address")
		criteriaPath = flag.String("criteria", envOr("BOTGUARD_CRITERIA", ""), "path to criteria JSON file (defaults used when empty)")
		sqlitePath   = flag.String("sqlite", envOr("BOTGUARD_SQLITE", ""), "sqlite database path (in-memory store when empty)")
		watch        = flag.Bool("watch", false, "reload criteria when the file changes")
		webhookURL   = flag.String("alert-webhook", envOr("BOTGUARD_ALERT_WEBHOOK", ""), "webhook URL for bot alerts")
		jsonLogs     = flag.Bool("json-logs", false, "log in JSON format")
	)
	flag.Parse()

	logger := logrus.New()
	if *jsonLogs {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	criteria, err := buildCriteriaProvider(*criteriaPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to load detection criteria")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watch {
		if err := criteria.Watch(ctx); err != nil {
			logger.WithError(err).Fatal("failed to watch criteria file")
		}
	}

	var store botguard.DetectionStore
	if *sqlitePath != "" {
		sqlStore, err := botguard.NewSQLDetectionStore(*sqlitePath)
		if err != nil {
			logger.WithError(err).Fatal("failed to open sqlite store")
		}
		defer sqlStore.Close()
		store = sqlStore
		logger.WithField("path", *sqlitePath).Info("using sqlite detection store")
	} else {
		store = botguard.NewInMemoryDetectionStore()
		logger.Info("using in-memory detection store")
	}

	metrics := botguard.NewInMemoryMetricsCollector()
	ledger := botguard.NewDetectionLedger(5 * time.Minute)
	alerts := botguard.NewAlertRegistry(logger)
	if *webhookURL != "" {
		alerts.Register(botguard.NewWebhookAlertSender(*webhookURL))
	}

	engine := botguard.NewDetectionEngine(store, criteria, metrics, ledger, alerts, logger)
	workflow := botguard.NewReviewWorkflow(store, metrics, alerts, logger)
	tracker := botguard.NewAccuracyTracker(store)
	server := botguard.NewServer(engine, workflow, tracker, ledger, store, metrics, logger)

	app := fiber.New(fiber.Config{AppName: "botguard"})
	server.RegisterRoutes(app)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("shutdown failed")
		}
	}()

	logger.WithField("addr", *addr).Info("botguard listening")
	if err := app.Listen(*addr); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func buildCriteriaProvider(path string, logger *logrus.Logger) (*botguard.CriteriaProvider, error) {
	if path == "" {
		return botguard.NewCriteriaProvider(botguard.DefaultCriteria(), logger), nil
	}
	return botguard.NewCriteriaProviderFromFile(path, logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
