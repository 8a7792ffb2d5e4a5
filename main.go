package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"netrunner/config"
	"netrunner/discovery"
	"netrunner/gateway"
	"netrunner/logging"
	"netrunner/models"
	"netrunner/network"
	"netrunner/storage"
	"netrunner/ui"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed while loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.Info().Str("config", cfgPath).Str("instance", cfg.InstanceID).Msg("starting")

	dataDir := filepath.Dir(cfgPath)
	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed while opening database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("database close error")
		}
	}()
	logger.Info().Str("database", dbPath).Msg("storage ready")

	if cfg.ServerURL == "" && cfg.DiscoverServer {
		if server, ok := discoverServer(logging.ForComponent(logger, "discovery")); ok {
			cfg.ServerURL = server.BaseURL()
			if server.SocketPath != "" {
				cfg.SocketPath = server.SocketPath
			}
			logger.Info().Str("server", cfg.ServerURL).Msg("discovered chat server")
		}
	}
	if cfg.ServerURL == "" {
		logger.Fatal().Msg("no server configured; set server_url or enable discover_server")
	}

	tokens := &tokenStore{}
	if saved, err := store.LoadSession(); err == nil {
		tokens.set(saved.Token)
	} else if !errors.Is(err, storage.ErrNoSession) {
		logger.Warn().Err(err).Msg("failed to load saved session")
	}

	api := gateway.New(cfg.ServerURL, tokens.get,
		gateway.WithLogger(logging.ForComponent(logger, "gateway")))

	socketURL, err := cfg.WebSocketURL()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid server URL")
	}

	sessionLogger := logging.ForComponent(logger, "network")
	deps := ui.Deps{
		API:       api,
		Contacts:  store,
		History:   store,
		Sessions:  store,
		SocketURL: socketURL,
		NewSession: func(identity network.Identity) (ui.Messenger, error) {
			return network.NewSession(network.Options{
				Identity: identity,
				Logger:   sessionLogger,
			})
		},
		OnLogin: func(creds models.Credentials) {
			tokens.set(creds.Token)
			if err := store.SaveSession(storage.Session{
				Token:    creds.Token,
				Username: creds.Username,
				UserID:   creds.UserID,
			}); err != nil {
				logger.Warn().Err(err).Msg("failed to persist session")
			}
		},
		Logger: logging.ForComponent(logger, "ui"),
	}

	var resume *models.Credentials
	if saved, err := store.LoadSession(); err == nil {
		resume = &models.Credentials{
			Token:    saved.Token,
			Username: saved.Username,
			UserID:   saved.UserID,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	program := tea.NewProgram(ui.NewApp(deps, resume), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Fatal().Err(err).Msg("terminal program failed")
	}
	logger.Info().Msg("shutting down")
}

// discoverServer runs one browse window and returns the first server
// announced on it.
func discoverServer(logger zerolog.Logger) (discovery.DiscoveredServer, bool) {
	scanner, err := discovery.NewServerScanner(discovery.Config{})
	if err != nil {
		logger.Warn().Err(err).Msg("discovery unavailable")
		return discovery.DiscoveredServer{}, false
	}
	scanner.Start()
	defer scanner.Stop()

	deadline := time.After(2*discovery.DefaultScanTimeout + time.Second)
	for {
		select {
		case event, ok := <-scanner.Events():
			if !ok {
				return discovery.DiscoveredServer{}, false
			}
			if event.Type != discovery.EventServerUpserted {
				continue
			}
			logger.Info().Str("server", event.Server.Name).
				Strs("addresses", event.Server.Addresses).
				Int("port", event.Server.Port).
				Msg("server announced")
			return event.Server, true
		case <-deadline:
			if servers := scanner.ListServers(); len(servers) > 0 {
				return servers[0], true
			}
			return discovery.DiscoveredServer{}, false
		}
	}
}

// tokenStore shares the bearer token between the login flow and the
// gateway's request hook.
type tokenStore struct {
	mu    sync.Mutex
	token string
}

func (t *tokenStore) set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *tokenStore) get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}
