package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/vizcount/vizcount/server"
	"github.com/vizcount/vizcount/server/config"
	"github.com/vizcount/vizcount/server/scanner"
)

func main() {
	parser := argparse.NewParser("vizcount", "Cooler inventory scanner")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file (JSON)", Default: "vizcount.json"})
	envFile := parser.String("e", "env", &argparse.Options{Help: "Environment file with sync secrets", Default: ".env"})
	dbFile := parser.String("", "db", &argparse.Options{Help: "Override the database file", Default: ""})
	listen := parser.String("l", "listen", &argparse.Options{Help: "Override the HTTP listen address", Default: ""})
	noSync := parser.Flag("", "nosync", &argparse.Options{Help: "Disable the background sync loop", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Infof("Config file %v not found. Using defaults", *configFile)
		cfg = config.DefaultConfig()
	} else if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *dbFile != "" {
		cfg.DBPath = *dbFile
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	// Frames arrive over HTTP with text already recognized on the device, so we don't need a recognizer here.
	srv, err := server.NewServer(logger, cfg, scanner.Options{})
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()
	if !*noSync {
		srv.StartSync()
	}

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	// SYNC-SERVER-PORT
	if err := srv.ListenHTTP(cfg.Listen); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
	}
	<-srv.ShutdownComplete
	logger.Close()
}
