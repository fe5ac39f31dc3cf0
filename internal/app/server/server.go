package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-gate/internal/api"
	"content-gate/internal/appscope"
	"content-gate/internal/attribution"
	"content-gate/internal/backend"
	"content-gate/internal/config"
	"content-gate/internal/device"
	"content-gate/internal/gate"
	"content-gate/internal/listener"
	"content-gate/internal/notify"
	"content-gate/internal/push"
	"content-gate/internal/settings"
	"content-gate/internal/storage"
	"content-gate/props"

	"github.com/rs/zerolog/log"
)

// Server owns the process-wide scope: one attribution pipeline, one gate
// and the storage they share.
type Server struct {
	cfg      config.Config
	store    storage.Backend
	scope    *appscope.Scope
	pipeline *attribution.Pipeline
	push     *push.Handler
	handler  http.Handler
}

// New wires every component and arms the attribution timeout. ctx is the
// application scope; canceling it stops pending work.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	profile, err := props.Load(cfg.Device.ProfilePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load profile: %w", err)
	}

	prefs := storage.NewPrefs(store)
	dev := device.NewProvider(prefs, cfg.Device.Locale, cfg.Device.AdvertisingID, cfg.Device.AppUserID)
	scope := appscope.New()

	confirmer := attribution.NewConfirmClient(cfg.Attribution.ConfirmBaseURL, cfg.Attribution.AppID,
		cfg.Attribution.DevKey, cfg.Attribution.ConfirmTimeout)
	pipeline := attribution.NewPipeline(scope.Conversion(), confirmer, attribution.Options{
		Timeout:        cfg.Attribution.Timeout,
		ConfirmDelay:   cfg.Attribution.ConfirmDelay,
		ConfirmTimeout: cfg.Attribution.ConfirmTimeout,
		DeviceID: func(ctx context.Context) string {
			id, err := dev.InstallID(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("install id unavailable for confirming call")
			}
			return id
		},
	})
	pipeline.Start(ctx)

	repo := backend.NewRepository(backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Path, cfg.Backend.Timeout), profile, dev)
	g := gate.New(ctx, gate.Deps{
		Prefs:    prefs,
		Source:   scope.Conversion(),
		Fetcher:  repo,
		Probe:    device.DialProbe{Hosts: cfg.Device.ProbeHosts, Timeout: cfg.Device.ProbeTimeout},
		Override: scope,
	})
	pushHandler := push.NewHandler(scope)

	h := &api.Handler{
		Gate:           g,
		Pipeline:       pipeline,
		Push:           pushHandler,
		Device:         dev,
		Settings:       settings.NewRepository(store),
		Notify:         notify.NewPolicy(prefs, cfg.Notifications.SkipDeferral, cfg.Notifications.RationaleDeferral),
		ContentTimeout: cfg.Server.ContentTimeout,
	}

	log.Info().
		Str("driver", cfg.Storage.Driver).
		Str("bundle_id", profile.BundleID).
		Str("locale", dev.Locale()).
		Dur("attribution_timeout", cfg.Attribution.Timeout).
		Msg("components ready")

	return &Server{
		cfg:      cfg,
		store:    store,
		scope:    scope,
		pipeline: pipeline,
		push:     pushHandler,
		handler: api.Router(h, api.RouterConfig{
			IngestRate:  cfg.Ingest.RatePerSecond,
			IngestBurst: cfg.Ingest.Burst,
		}),
	}, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// StartListener follows override URLs published over LISTEN/NOTIFY.
// Only the postgres backend supports it.
func (s *Server) StartListener(ctx context.Context) bool {
	pg, ok := s.store.(*storage.Store)
	if !ok {
		log.Debug().Str("driver", s.cfg.Storage.Driver).Msg("override listener disabled")
		return false
	}
	log.Info().Str("dsn", pg.DSNRedacted()).Str("channel", s.cfg.Listener.Channel).Msg("override listener starting")
	go listener.ListenOverrides(ctx, pg.PgxPool(), s.push, s.cfg.Listener.Channel, s.cfg.Backoff())
	return true
}

func (s *Server) Close() { s.store.Close() }

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}
	defer s.Close()

	s.StartListener(rootCtx)

	// WriteTimeout must outlast the content wait
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.ContentTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
