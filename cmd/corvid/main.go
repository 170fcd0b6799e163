package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corvid-irc/corvid/internal/access"
	"github.com/corvid-irc/corvid/internal/bot"
	"github.com/corvid-irc/corvid/internal/config"
	"github.com/corvid-irc/corvid/internal/event"
	"github.com/corvid-irc/corvid/internal/irc"
	"github.com/corvid-irc/corvid/internal/plugins/help"
	"github.com/corvid-irc/corvid/internal/plugins/seen"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("c", "./config.yaml", "Path to configuration file")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("corvid version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Set version info in irc package
	irc.Version = version
	irc.BuildDate = buildDate
	irc.GitCommit = gitCommit

	if err := writePIDFile(); err != nil {
		logrus.Warnf("could not write PID file: %v", err)
	}

	run(*configPath)
}

func writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile("pid.txt", []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

func run(configPath string) {
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	acl, err := access.Load(cfg.DataDir)
	if err != nil {
		log.Warnf("access list: %v", err)
	}
	if acl == nil {
		acl = &access.List{Accounts: map[string]event.Level{}}
	}

	client := irc.NewClient(cfg, log)

	ctx := &bot.Context{
		Config: cfg,
		Log:    log,
		Access: acl,
		Conn:   client,
	}
	b := bot.New(ctx)

	if err := registerPlugins(b, cfg); err != nil {
		log.Fatalf("failed to compose plugins: %v", err)
	}

	// Plugin start hooks run once the server accepts us; everything
	// before the Connected event is connection bookkeeping.
	started := false
	client.SetSink(func(ev *event.Event) {
		if ev.Type == event.Connected && !started {
			started = true
			b.Start()
		}
		if err := b.Dispatch(ev); err != nil {
			log.WithError(err).Warn("event dropped")
		}
	})

	// Main-loop tick: due timers and periodic hooks.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			b.Tick(time.Now().Unix())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				log.Info("received SIGHUP, reloading")
				if acl2, err := access.Load(cfg.DataDir); err == nil {
					*acl = *acl2
				} else {
					log.Warnf("access list: %v", err)
				}
				b.Reload()
				continue
			}
			log.Infof("received signal %v, shutting down", sig)
			b.Teardown()
			client.Quit("Received shutdown signal")
			os.Exit(0)
		}
	}()

	log.Infof("connecting to %s:%d...", cfg.Server, cfg.Port)
	if err := client.Connect(); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	log.Info("connected, entering main loop...")
	client.Loop()
}

func registerPlugins(b *bot.Bot, cfg *config.Config) error {
	disabled := make(map[string]bool, len(cfg.DisabledPlugins))
	for _, name := range cfg.DisabledPlugins {
		disabled[name] = true
	}

	helpPlugin, err := help.New(b, cfg.HomeChannels)
	if err != nil {
		return err
	}
	seenPlugin, err := seen.New(cfg.HomeChannels, cfg.RehashInterval)
	if err != nil {
		return err
	}

	for _, p := range []*bot.Plugin{helpPlugin, seenPlugin} {
		if disabled[p.Name()] {
			p.Disable()
		}
		if err := b.Register(p); err != nil {
			return err
		}
	}
	return nil
}
