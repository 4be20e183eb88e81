package app

import (
	"context"
	"fmt"
	"log"

	"classpoll/internal/api"
	"classpoll/internal/cache"
	"classpoll/internal/config"
	"classpoll/internal/history"
	"classpoll/internal/lifecycle"
	"classpoll/internal/roster"
	"classpoll/internal/session"
	"classpoll/internal/socket"
	"classpoll/internal/store"
	"classpoll/pkg/types"
)

// Application wires the client's components. Initialization follows
// dependency order: Cache → Backend → State → Socket → Registrar →
// Machine → Roster → Reconciler.
type Application struct {
	config     *config.Config
	cacheStore *cache.Store
	backend    *api.Client
	state      *store.State
	conn       *socket.Connection
	registrar  *session.Registrar
	machine    *lifecycle.Machine
	roster     *roster.Channel
	reconciler *history.Reconciler
}

// NewApplication creates an application instance with every component
// constructed but not yet connected.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cacheStore := cache.Open(cfg.Cache.Path)
	backend := api.NewClient(cfg.Server.URL, cfg.Server.HTTPTimeout)
	state := store.New()
	state.SetChatEnabled(cfg.Chat.Enabled)

	return &Application{
		config:     cfg,
		cacheStore: cacheStore,
		backend:    backend,
		state:      state,
	}, nil
}

// Start dials the event channel and binds every component to it.
func (app *Application) Start(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, app.config.Server.DialTimeout)
	defer cancel()

	conn, err := socket.Dial(dialCtx, app.config.Server.URL)
	if err != nil {
		app.cacheStore.Close()
		return fmt.Errorf("failed to connect event channel: %w", err)
	}
	app.conn = conn

	app.registrar = session.NewRegistrar(app.backend, app.cacheStore)
	app.machine = lifecycle.NewMachine(conn, app.state, app.cacheStore, app.registrar)
	app.roster = roster.NewChannel(conn, app.cacheStore, app.registrar, app.state)
	app.reconciler = history.NewReconciler(app.backend, app.cacheStore, app.state)

	app.machine.Bind()
	app.roster.Bind()

	log.Printf("Client started: connection=%s chat=%v", conn.ID(), app.state.ChatEnabled())
	return nil
}

// Stop tears components down in reverse order of Start.
func (app *Application) Stop() {
	if app.roster != nil {
		app.roster.Teardown()
	}
	if app.machine != nil {
		app.machine.Teardown()
	}
	if app.conn != nil {
		if err := app.conn.Close(); err != nil {
			log.Printf("Event channel close error: %v", err)
		}
	}
	if err := app.cacheStore.Close(); err != nil {
		log.Printf("Cache close error: %v", err)
	}
	log.Printf("Client shutdown complete")
}

// JoinAsTeacher registers the teacher, ensures a session exists and
// returns its id. A backend failure leaves the client in degraded mode:
// joined, but without per-session persistence.
func (app *Application) JoinAsTeacher(ctx context.Context, name string) (string, error) {
	if err := app.machine.JoinTeacher(name); err != nil {
		return "", err
	}

	sid, err := app.registrar.EnsureSession(ctx, name)
	if err != nil {
		log.Printf("Running without a session: %v", err)
		return "", nil
	}
	return sid, nil
}

// JoinAsStudent registers a student participant.
func (app *Application) JoinAsStudent(name string) error {
	return app.machine.JoinStudent(name)
}

// WasKicked reports whether a previous run of this client was removed by
// the teacher.
func (app *Application) WasKicked() bool {
	var kicked bool
	return app.cacheStore.GetJSON(types.KeyKicked, &kicked) && kicked
}

// Machine exposes the poll lifecycle state machine.
func (app *Application) Machine() *lifecycle.Machine { return app.machine }

// Roster exposes the roster and messaging channel.
func (app *Application) Roster() *roster.Channel { return app.roster }

// Reconciler exposes the history reconciler.
func (app *Application) Reconciler() *history.Reconciler { return app.reconciler }

// State exposes the shared process state.
func (app *Application) State() *store.State { return app.state }
