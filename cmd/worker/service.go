package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

// ServiceParams wires the event worker. Each consumer owns one subscription.
type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Checks    map[string]pinger
	Consumers map[string]runner
}

type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	checks    map[string]pinger
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %q is nil", name)
		}
	}
	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		checks:    params.Checks,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, fn := range s.checks {
		if err := pingDependency(ctx, s.logg, name, fn); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn pinger) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run starts every consumer and returns when the context ends or any consumer
// stops. The remaining consumers are cancelled before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			results <- result{name: name, err: c.Run(runCtx)}
		}()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case res := <-results:
		logCtx := s.logg.WithField(ctx, "consumer", res.name)
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			s.logg.Error(logCtx, "consumer stopped unexpectedly", res.err)
			return res.err
		}
		s.logg.Warn(logCtx, "consumer stopped")
		return res.err
	}
}
