package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aegis/copilot/internal/config"
	"github.com/aegis/copilot/internal/logger"
	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/internal/tracing"
	"github.com/aegis/copilot/pkg/chat"
	"github.com/aegis/copilot/pkg/commandqueue"
	"github.com/aegis/copilot/pkg/gateway"
	"github.com/aegis/copilot/pkg/llm"
	"github.com/aegis/copilot/pkg/session"
)

// Options carries process-level settings that are not part of the config file
type Options struct {
	// ConfigPath is watched for log level changes when the file exists
	ConfigPath string
	// PIDFile is written on Start and removed on Stop. Empty disables it.
	PIDFile string
	Version string
}

// Daemon wires the session store, dispatcher and gateway into one service
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	options Options

	provider      llm.Provider
	store         *session.Store
	sweeper       *session.Sweeper
	dispatcher    *chat.Dispatcher
	lanes         *commandqueue.CommandQueue
	gatewayServer *gateway.Server
	watcher       *config.Watcher
	lifecycle     *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

var newProvider = func(profile llm.Profile) (llm.Provider, error) {
	factory := &llm.ProviderFactory{}
	return factory.NewProvider(profile)
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	d := &Daemon{
		config:  cfg,
		logger:  log,
		options: opts,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, opts.Version); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d, opts.PIDFile)

	return d, nil
}

// initializeCoreModules builds the provider, store and dispatcher
func (d *Daemon) initializeCoreModules() error {
	provider, err := newProvider(llm.Profile{
		Provider: d.config.LLM.Provider,
		APIKey:   d.config.LLM.APIKey,
		BaseURL:  d.config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}
	d.provider = provider
	d.logger.Info().
		Str("provider", provider.Name()).
		Str("model", d.config.LLM.Model).
		Msg("LLM provider initialized")

	retention := session.NewRetentionPolicy(d.config.Sessions.IdleTTL, d.config.Sessions.MaxMessages)
	d.store = session.NewStore(retention)
	d.logger.Info().Str("retention", retention.Name()).Msg("Session store initialized")

	if d.config.RetentionEnabled() {
		d.sweeper = session.NewSweeper(d.store, d.config.Sessions.SweepSchedule)
	}

	chatCfg := chat.Config{
		Store:       d.store,
		Provider:    provider,
		Model:       d.config.LLM.Model,
		Temperature: d.config.LLM.Temperature,
		MaxTokens:   d.config.LLM.MaxTokens,
		Logger:      d.logger.GetZerolog().With().Str("component", "dispatcher").Logger(),
	}
	if d.config.Sessions.SerializeTurns {
		d.lanes = commandqueue.New()
		chatCfg.Lanes = d.lanes
		d.logger.Info().Msg("Per-session turn serialization enabled")
	}

	dispatcher, err := chat.NewDispatcher(chatCfg)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	d.dispatcher = dispatcher

	return nil
}

// initializeServices builds the gateway and the config watcher
func (d *Daemon) initializeServices() error {
	srv := d.config.Server
	gatewayServer, err := gateway.NewServer(gateway.Config{
		Host:               srv.Host,
		Port:               srv.Port,
		Dispatcher:         d.dispatcher,
		Sessions:           d.store,
		SharedSecret:       srv.SharedSecret,
		RateLimitPerMinute: srv.RateLimitPerMinute,
		MaxBodyBytes:       srv.MaxBodyBytes,
		TurnTimeout:        srv.TurnTimeout,
		ShutdownTimeout:    srv.ShutdownTimeout,
		TrustedProxies:     srv.TrustedProxies,
		Logger:             d.logger.GetZerolog().With().Str("component", "gateway").Logger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer

	if d.options.ConfigPath != "" {
		if _, err := os.Stat(d.options.ConfigPath); err == nil {
			watcher, err := config.NewWatcher(config.NewLoader(d.options.ConfigPath), d.handleConfigReload)
			if err != nil {
				return fmt.Errorf("failed to create config watcher: %w", err)
			}
			d.watcher = watcher
		}
	}

	return nil
}

// handleConfigReload applies the settings that can change without a restart
func (d *Daemon) handleConfigReload(cfg *config.Config) {
	if cfg.Logging.Level == "" || cfg.Logging.Level == d.logger.Level().String() {
		return
	}
	previous := d.logger.Level().String()
	if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
		d.logger.Warn().Err(err).Msg("Ignoring invalid log level from reloaded config")
		return
	}
	observability.RecordConfigAudit(context.Background(), "log_level_changed", "watcher", map[string]any{
		"from": previous,
		"to":   cfg.Logging.Level,
	})
}

// Start starts the daemon
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting copilot daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		_ = d.lifecycle.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")

	if d.sweeper != nil {
		if err := d.sweeper.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start session sweeper")
		}
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start config watcher")
		}
	}

	logger.Info().Msg("Copilot daemon started")
	return nil
}

// Stop stops the daemon
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping copilot daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	// Drains in-flight turns before the sweeper goes away.
	if err := d.gatewayServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop gateway server")
	}

	if d.lanes != nil {
		if err := d.lanes.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close turn lanes")
		}
	}

	if d.sweeper != nil && d.sweeper.IsRunning() {
		if err := d.sweeper.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop session sweeper")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.shutdownTracing()

	logger.Info().Int("sessions", d.store.Len()).Msg("Copilot daemon stopped")
	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracingEnabled = false
}

// Status returns daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.gatewayServer.Addr()
		status.Sessions = d.store.Len()
	}

	return status
}

// Wait blocks until SIGINT, SIGTERM or ctx is done, then stops the daemon
func (d *Daemon) Wait(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	d.logger.Info().Str("reason", context.Cause(ctx).Error()).Msg("Shutdown requested")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	Addr      string
	Sessions  int
}

// GetConfig returns the configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetSessionStore returns the session store
func (d *Daemon) GetSessionStore() *session.Store {
	return d.store
}

// GetDispatcher returns the turn dispatcher
func (d *Daemon) GetDispatcher() *chat.Dispatcher {
	return d.dispatcher
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}
