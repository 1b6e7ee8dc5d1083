package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func init() {
	initializeStdoutLogger()
}

// Populated by ldflags
var (
	version            string
	buildUnixTimestamp string
	commitHash         string
)

func main() {
	ts, _ := strconv.ParseInt(buildUnixTimestamp, 10, 64)
	buildTime := time.Unix(ts, 0)

	versionFlag := flag.Bool("version", false, "Print version")
	systemdFlag := flag.Bool("systemd", false, "Print systemd service file")
	configFlag := flag.String("config", "", "Path to the TOML config file (default ringd.toml if present)")
	flag.Parse()

	if *versionFlag {
		fmt.Println("ringd version:", version)
		fmt.Println("Built on:", buildTime)
		fmt.Println("Commit hash:", commitHash)
		return
	}

	if *systemdFlag {
		if err := SystemdServiceFile(os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Rendering systemd service file failed")
		}
		return
	}

	log.Info().
		Str("version", version).
		Str("build_timestamp", buildTime.Format(time.RFC3339)).
		Str("commit_hash", commitHash).
		Msg("Initializing ringd")

	path, optional := *configFlag, false
	if path == "" {
		path, optional = "ringd.toml", true
	}
	config, err := LoadConfig(afero.NewOsFs(), path, optional, os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Config initialization failed")
	}
	level, _ := config.Level()
	zerolog.SetGlobalLevel(level)

	reg, err := NewRegistry(config.HistorySize, config.SubscriberBuffer)
	if err != nil {
		log.Fatal().Err(err).Msg("Registry initialization failed")
	}
	for _, rc := range config.Rings {
		if err := reg.Create(rc.Name, rc.Values, rc.Joint); err != nil {
			log.Fatal().Err(err).Str("ring", rc.Name).Msg("Preloading ring failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := StartServer(ctx, config, reg); err != nil {
		log.Err(err).Msg("Server closed with error")
	}
}
