package main

import (
	"time"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/worker"
)

type Server struct {
	infra  *infrastructure.Infrastructure
	worker *worker.Worker
	http   *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	w := worker.New(cfg, infra)

	infra.Logger.Info(
		"worker initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"queue_driver", cfg.Queue.Driver,
	)

	return &Server{
		infra:  infra,
		worker: w,
		http: newHTTPServer(
			&cfg.Server,
			buildRouter(infra),
			infra.Logger,
			cfg.ShutdownTimeoutDuration(),
		),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.worker.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
