package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"medtime-companion/config"
	"medtime-companion/internal/alarms"
	"medtime-companion/internal/alertlog"
	"medtime-companion/internal/api"
	"medtime-companion/internal/db"
	"medtime-companion/internal/device"
	"medtime-companion/internal/discovery"
	"medtime-companion/internal/metrics"
	"medtime-companion/internal/notification"
	"medtime-companion/internal/poller"
	"medtime-companion/internal/relay"
	"medtime-companion/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "medtimed ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	metrics.Init(prometheus.DefaultRegisterer)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := store.NewGormStore(gormDB)

	link := device.New(device.LoadAddress(ctx, kv, cfg.Device.DefaultAddress), device.OptionsFromConfig(cfg.Device))
	logger.Printf("device address: %s", link.BaseAddress())

	alerts := alertlog.New(kv)
	alerts.Load(ctx)

	relaySettings := relay.NewSettings(kv, cfg.Relay.DefaultRecipient)
	relaySettings.Load(ctx)
	relaySvc := relay.NewService(relay.NewClient(cfg.Relay), relaySettings, cfg.Relay.ImageURL)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	dispatcher := notification.NewDispatcher(cfg.WorkerPool.Size, cfg.WorkerPool.Queue)
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		dispatcher.Register("webpush", notification.NewWebPushSink(gormDB, &webpushOptions))
	} else {
		logger.Println("VAPID keys not configured; local push notifications disabled")
	}
	dispatcher.Register("relay", notification.NewRelaySink(relaySvc))
	if cfg.MQTT.Enabled {
		pub, err := notification.ConnectMQTT(ctx, cfg.MQTT)
		if err != nil {
			logger.Printf("MQTT sink disabled: %v", err)
		} else {
			dispatcher.Register("mqtt", notification.NewMQTTSink(pub, cfg.MQTT.Topic))
		}
	}
	dispatcher.Start(ctx)

	alarmStore := alarms.New(kv, link, alerts, dispatcher,
		alarms.WithLocation(cfg.Alarms.Location()),
		alarms.WithMaxLEDIndex(cfg.Alarms.MaxLEDIndex),
		alarms.WithDefaultName(cfg.Alarms.DefaultName),
	)
	alarmStore.Load(ctx)
	logger.Printf("loaded %d alarms", len(alarmStore.List()))

	// Re-arm the device in case it lost its schedule while we were down.
	go func() {
		if res := alarmStore.Sync(ctx); res.DeviceErr != nil {
			logger.Printf("initial alarm sync failed: %v", res.DeviceErr)
		}
	}()

	indicator := poller.NewIndicator(cfg.Poller.UnreachableThreshold)
	activePoller := poller.NewActivePoller(link, alerts, dispatcher, indicator, cfg.Poller.ActiveInterval,
		poller.WithLookup(alarmStore.Lookup))
	statusWatcher := poller.NewStatusWatcher(link, indicator, cfg.Poller.StatusInterval)
	go activePoller.Run(ctx)
	go statusWatcher.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Alarms:         alarmStore,
		Alerts:         alerts,
		Poller:         activePoller,
		Indicator:      indicator,
		Link:           link,
		KV:             kv,
		Relay:          relaySvc,
		Scanner:        discovery.NewScanner(discovery.LinkProber{Timeout: 2500 * time.Millisecond}),
		DB:             gormDB,
		WebPush:        &webpushOptions,
		FactoryAddress: cfg.Device.DefaultAddress,
	})
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	cancel()
	<-activePoller.Done()
	<-statusWatcher.Done()
	dispatcher.Wait()

	logger.Println("Server gracefully stopped")
}
