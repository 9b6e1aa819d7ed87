package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/dashboard"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/metrics"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/notify"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/parser"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/pipeline"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/pipeline/dispatcher"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/pipeline/fetcher"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":    cfg.Signalbot.Name,
		"version":    cfg.Signalbot.Version,
		"channel_id": cfg.Telegram.ChannelID,
	}).Info("starting signalbot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector()

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	metrics.StartReport(ctx, log, collector, cfg.Metrics.ReportInterval)

	var wg sync.WaitGroup

	hub := dashboard.NewHub(log)
	dash, err := dashboard.NewServer(cfg.Dashboard, log, collector, hub)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard server")
		os.Exit(1)
	}
	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dash.Run(ctx, cfg.Signalbot.Name); err != nil {
				log.WithComponent("dashboard").WithError(err).Error("dashboard server stopped")
			}
		}()
	} else {
		log.WithComponent("main").Info("dashboard disabled")
	}

	opts := []pipeline.Option{pipeline.WithStream(hub)}

	var archive *writer.Archive
	if cfg.Archive.S3.Enabled {
		archive, err = writer.NewArchive(ctx, cfg.Archive.S3, cfg.Signalbot.Version, log)
		if err != nil {
			log.WithError(err).Error("failed to create S3 archive")
			os.Exit(1)
		}
		if err := archive.Start(ctx, 2); err != nil {
			log.WithError(err).Error("failed to start S3 archive")
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithArchive(archive))
	} else {
		log.WithComponent("main").Info("S3 archive disabled; skipping archive writer")
	}

	if cfg.Alerts.Email.Enabled {
		opts = append(opts, pipeline.WithAlerter(notify.NewEmailAlerter(cfg.Alerts.Email, log)))
	}

	p := pipeline.New(
		cfg.Telegram.ChannelID,
		cfg.Pipeline.Workers,
		parser.New(log, collector),
		collector,
		dispatcher.New(cfg.Ingestion, log),
		log,
		opts...,
	)

	source, err := fetcher.NewTelegramFetcher(cfg.Telegram, cfg.Pipeline.Buffer, log)
	if err != nil {
		log.WithError(err).Error("failed to connect to Telegram")
		os.Exit(1)
	}
	updates, err := source.Start(ctx)
	if err != nil {
		log.WithError(err).Error("failed to start Telegram fetcher")
		os.Exit(1)
	}

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		p.Run(ctx, updates)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-pipelineDone:
		log.Warn("update stream ended")
	}

	log.Info("starting graceful shutdown")

	cancel()
	source.Stop()
	<-pipelineDone

	if archive != nil {
		log.Info("stopping S3 archive")
		archive.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout exceeded, forcing exit")
	}

	metrics.Report(log, collector)
	log.Info("signalbot stopped")
}
