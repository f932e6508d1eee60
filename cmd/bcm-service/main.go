package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bcm-service/internal/config"
	"bcm-service/internal/core"
	"bcm-service/internal/hardware"
	"bcm-service/internal/logger"
	"bcm-service/internal/messaging"
	"bcm-service/internal/transport"
	"bcm-service/internal/types"
	"bcm-service/internal/web"
)

// fanoutPublisher forwards each snapshot to every configured sink.
type fanoutPublisher []core.StatePublisher

func (p fanoutPublisher) PublishSnapshot(s types.Snapshot) error {
	var firstErr error
	for _, pub := range p {
		if err := pub.PublishSnapshot(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func main() {
	var serviceLogLevel int
	var configPath string
	var canInterface string
	var redisAddr string
	var listenAddr string
	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	flag.StringVar(&configPath, "config", "/etc/bcm-service/config.yml", "Configuration file path")
	flag.StringVar(&canInterface, "can", "", "CAN interface (overrides config)")
	flag.StringVar(&redisAddr, "redis", "", "Redis address (overrides config, implies enabled)")
	flag.StringVar(&listenAddr, "listen", "", "Diagnostic feed address (overrides config, implies enabled)")
	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}
	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	cfg, err := config.Load(configPath)
	if err != nil {
		l.Fatalf("Failed to load config: %v", err)
	}
	if canInterface != "" {
		cfg.CAN.Interface = canInterface
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
		cfg.Redis.Enabled = true
	}
	if listenAddr != "" {
		cfg.Web.ListenAddr = listenAddr
		cfg.Web.Enabled = true
	}

	l.Infof("Starting BCM service on %s...", cfg.CAN.Interface)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	canTransport, err := transport.Dial(ctx, cfg.CAN.Interface, cfg.CAN.RxBuffer, l.WithTag("can"))
	if err != nil {
		l.Fatalf("Failed to open CAN interface: %v", err)
	}
	defer canTransport.Close()

	var hw core.HardwareIO
	if cfg.Hardware.Enabled {
		hw = hardware.NewLinuxHardwareIO(l.WithTag("hw"))
	}

	var publishers []core.StatePublisher

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web.ListenAddr, l.WithTag("web"))
		publishers = append(publishers, webServer)
	}

	// The redis callbacks fire only after StartListening below, when the
	// system pointer is set.
	var system *core.BCMSystem
	var redisClient *messaging.RedisClient
	if cfg.Redis.Enabled {
		redisClient = messaging.NewRedisClient(cfg.Redis.Addr, l.WithTag("redis"), messaging.Callbacks{
			ClearFaults: func() error { system.RequestClearFaults(); return nil },
			Hazard:      func(on bool) error { system.RequestHazard(on); return nil },
			DoorLock:    func(lock bool) error { system.RequestDoorLock(lock); return nil },
		})
		if err := redisClient.Connect(); err != nil {
			l.Fatalf("Failed to connect to Redis: %v", err)
		}
		publishers = append(publishers, redisClient)
	}

	system = core.NewBCMSystem(cfg, canTransport, hw, fanoutPublisher(publishers),
		hardware.MonotonicClock{}, l)
	if err := system.Start(ctx); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	if redisClient != nil {
		redisClient.StartListening()
		defer redisClient.Close()
	}
	if webServer != nil {
		webServer.Start()
		defer webServer.Close()
	}

	go system.RunLoop(ctx)
	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	cancel()
	system.Shutdown()
	l.Infof("Shutdown complete")
}
