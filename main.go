package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Is0cre/growtent/auth"
	"github.com/Is0cre/growtent/internal/analysis"
	"github.com/Is0cre/growtent/internal/bot"
	"github.com/Is0cre/growtent/internal/config"
	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/engine"
	"github.com/Is0cre/growtent/internal/extsync"
	"github.com/Is0cre/growtent/internal/hardware"
	"github.com/Is0cre/growtent/internal/logger"
	"github.com/Is0cre/growtent/internal/notify"
	"github.com/Is0cre/growtent/internal/scheduler"
	"github.com/Is0cre/growtent/internal/statecache"
	"github.com/Is0cre/growtent/internal/taskqueue"
	"github.com/Is0cre/growtent/internal/web"

	"github.com/pion/mdns/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx := context.Background()
	database, err := db.NewDB(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database")
	}
	defer database.Close()

	if err := database.SeedDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("seeding defaults")
	}

	cache := statecache.New(cfg.RedisAddr)
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer cache.Close()

	relay, sensor, camera := buildHardware(cfg, log)
	defer relay.Close()
	defer sensor.Close()
	defer camera.Close()

	var notifier notify.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	} else {
		log.Warn().Msg("telegram not configured, alerts go to the log only")
		notifier = notify.NewLogNotifier(log)
	}

	eng := engine.NewEngine(database, cache, relay, sensor, camera, notifier, engine.Options{
		PollInterval:       cfg.PollInterval,
		DataLogInterval:    cfg.DataLogInterval,
		AlertCheckInterval: cfg.AlertCheckInterval,
		MaxTickFailures:    cfg.MaxTickFailures,
		DataDir:            cfg.DataDir,
	}, log)
	if err := eng.Start(); err != nil {
		log.Fatal().Err(err).Msg("starting engine")
	}

	analyzer := analysis.New(cfg.AnalysisURL, cfg.AnalysisAPIKey, log)
	syncer := extsync.New(database, cfg.ExtSyncURL, cfg.ExtSyncAPIKey, log)

	taskqueue.SetGlobalInstances(database, eng, notifier, analyzer, syncer, log)
	go taskqueue.StartWorkers(cfg.RedisAddr, log)

	sched, err := scheduler.NewScheduler(scheduler.Jobs{
		DailyReportSpec: cfg.DailyReportCron,
		AnalysisSpec:    cfg.AnalysisCron,
		AnalysisEnabled: cfg.AnalysisEnabled,
		ExtSyncSpec:     cfg.ExtSyncCron,
		ExtSyncEnabled:  cfg.ExtSyncEnabled,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building scheduler")
	}
	sched.Start()

	authModule := auth.NewAuthModule(cfg.JWTSecret, cfg.AdminPasswordHash)
	webServer := web.NewWebServer(database, cache, eng, authModule, log)
	go func() {
		if err := webServer.Start(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil {
			log.Fatal().Err(err).Msg("web server stopped")
		}
	}()

	go startMDNSServer(cfg.MDNSName, log)

	botCtx, stopBot := context.WithCancel(ctx)
	if cfg.TelegramToken != "" {
		tgBot := bot.New(cfg.TelegramToken, cfg.TelegramChatID, eng, database, log)
		go tgBot.Run(botCtx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	stopBot()
	eng.Stop()
	sched.Stop()
	taskqueue.StopWorkers()
	log.Info().Msg("shutdown complete")
}

// buildHardware connects the real MQTT relay, MQTT sensor and camera command,
// falling back to simulated implementations when hardware is unavailable or
// SIMULATE is set. The loop keeps running either way.
func buildHardware(cfg *config.Config, log zerolog.Logger) (hardware.Actuator, hardware.SensorSource, hardware.Capturer) {
	if cfg.Simulate {
		log.Info().Msg("running with simulated hardware")
		return hardware.NewSimRelay(log), hardware.NewSimSensor(), hardware.NewSimCamera(log)
	}

	var relay hardware.Actuator
	relay, err := hardware.NewMQTTRelay(cfg.MQTTBroker, cfg.MQTTClientID, log)
	if err != nil {
		log.Warn().Err(err).Msg("relay unavailable, using simulated relay")
		relay = hardware.NewSimRelay(log)
	}

	var sensor hardware.SensorSource
	sensor, err = hardware.NewMQTTSensor(cfg.MQTTBroker, cfg.MQTTClientID, 2*cfg.PollInterval, log)
	if err != nil {
		log.Warn().Err(err).Msg("sensor unavailable, using simulated sensor")
		sensor = hardware.NewSimSensor()
	}

	var camera hardware.Capturer
	camera, err = hardware.NewExecCamera(cfg.CameraCmd, log)
	if err != nil {
		log.Warn().Err(err).Msg("camera unavailable, using simulated camera")
		camera = hardware.NewSimCamera(log)
	}

	return relay, sensor, camera
}

func startMDNSServer(localName string, log zerolog.Logger) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Warn().Err(err).Msg("resolving UDP4 address for mDNS")
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Warn().Err(err).Msg("resolving UDP6 address for mDNS")
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Warn().Err(err).Msg("listening on UDP4 for mDNS")
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Warn().Err(err).Msg("listening on UDP6 for mDNS")
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Warn().Err(err).Msg("starting mDNS server")
	}
}
