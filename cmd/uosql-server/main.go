package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rnbguy/uosql-server/pkg/logging"
	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/server"
)

type configuration struct {
	Addr         string
	DatabaseName string
	DataDir      string
	Username     string
	Password     string
	LogLevel     string
	LogFormat    string
	LogPath      string
}

func main() {
	config := parseArguments()

	if err := logging.Init(logging.Config{
		Level:      logging.LogLevel(config.LogLevel),
		OutputPath: config.LogPath,
		Format:     config.LogFormat,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	logger := logging.WithComponent("server")

	db, err := openDatabase(config)
	if err != nil {
		logging.WithError(err).Error("failed to open database", "database", config.DatabaseName)
		os.Exit(1)
	}
	logging.WithDatabase(db.Name).Info("database ready", "tables", len(db.TableNames()))

	srv := &server.Server{
		Addr: config.Addr,
		Auth: server.AuthenticatorFunc(func(username, password string) bool {
			return username == config.Username && password == config.Password
		}),
		Exec:   newDispatcher(db, logging.WithComponent("dispatcher")),
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("listening", "addr", config.Addr)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func parseArguments() configuration {
	var config configuration

	flag.StringVar(&config.Addr, "addr", "127.0.0.1:4242", "Listen address")
	flag.StringVar(&config.DatabaseName, "db", "main", "Database name")
	flag.StringVar(&config.DataDir, "data", "./data", "Data directory path")
	flag.StringVar(&config.Username, "user", "elena", "Accepted username")
	flag.StringVar(&config.Password, "password", "prakt", "Accepted password")
	flag.StringVar(&config.LogLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.StringVar(&config.LogFormat, "log-format", "text", "Log format (text or json)")
	flag.StringVar(&config.LogPath, "log-path", "", "Log file path (empty for stderr)")

	flag.Parse()

	return config
}

// openDatabase opens the configured database, creating it on first run.
func openDatabase(config configuration) (*meta.Database, error) {
	db, err := meta.OpenDatabase(config.DataDir, config.DatabaseName)
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, meta.ErrLoadDatabase) {
		return nil, err
	}

	db, err = meta.CreateDatabase(config.DataDir, config.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("creating database %q: %w", config.DatabaseName, err)
	}
	return db, nil
}
