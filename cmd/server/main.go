package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"backend-booking/internal/booking"
	"backend-booking/internal/config"
	"backend-booking/internal/http/handler"
	"backend-booking/internal/http/router"
	"backend-booking/internal/logger"
	"backend-booking/internal/metrics"
	"backend-booking/internal/notify"
	"backend-booking/internal/realtime"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	envLoaded := config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("info").Fatal("invalid configuration", "error", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	if !envLoaded {
		log.Info("no .env file found, using system environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid timezone", "error", err)
	}
	schedule, err := booking.NewSchedule(booking.ScheduleConfig{
		Location:        loc,
		OpeningTime:     cfg.OpeningTime,
		ClosingTime:     cfg.ClosingTime,
		Windows:         cfg.SlotWindows,
		ServiceDuration: cfg.ServiceDuration,
		ModifyCutoff:    cfg.ModifyCutoff,
	})
	if err != nil {
		log.Fatal("invalid schedule", "error", err)
	}

	var closers closerStack
	defer closers.closeAll(log)

	store, err := openStore(ctx, cfg, log, &closers)
	if err != nil {
		log.Fatal("open booking store", "driver", cfg.StoreDriver, "error", err)
	}
	roster, err := openRoster(ctx, cfg, &closers)
	if err != nil {
		log.Fatal("open advisor roster", "driver", cfg.RosterDriver, "error", err)
	}
	locker, err := openLocker(ctx, cfg, &closers)
	if err != nil {
		log.Fatal("open slot locker", "driver", cfg.LockDriver, "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("booking", reg)

	hub := realtime.NewSlotsHub(log)
	sinks := []notify.Sink{notify.NewLogSink(log), hub}
	if cfg.RabbitURL != "" {
		pub, err := notify.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange)
		if err != nil {
			log.Fatal("connect rabbitmq", "error", err)
		}
		closers.push("rabbitmq", pub.Close)
		sinks = append(sinks, notify.NewAMQPSink(pub))
		log.Info("amqp notifications enabled", "exchange", cfg.NotifyExchange)
	}

	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, log, m, sinks...)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)

	ctl := booking.NewController(store, roster, schedule,
		booking.WithSlotLocker(locker),
		booking.WithPublisher(dispatcher),
		booking.WithLogger(log),
		booking.WithMetrics(m),
	)

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))

	router.Setup(app, router.Deps{
		Bookings:    handler.NewBookingHandler(ctl, log),
		Hub:         hub,
		JWTSecret:   cfg.JWTSecret,
		Gatherer:    reg,
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("http shutdown", "error", err)
		}
	}()

	addr := cfg.Addr()
	log.Info("server listening",
		"addr", addr,
		"store", cfg.StoreDriver,
		"roster", cfg.RosterDriver,
		"lock", cfg.LockDriver,
	)
	if err := app.Listen(addr); err != nil {
		log.Error("http server stopped", "error", err)
	}

	stopDispatch()
	select {
	case <-dispatcher.Done():
	case <-time.After(10 * time.Second):
		log.Warn("notification dispatcher did not drain in time")
	}
}
