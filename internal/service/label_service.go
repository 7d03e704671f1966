package service

import (
	"context"
	"fmt"
	"time"

	"pretgo/internal/domain"
	"pretgo/internal/labels"
	"pretgo/internal/metrics"
	"pretgo/internal/models"
	"pretgo/internal/worker"

	"github.com/rs/zerolog"
)

// LabelService renders and prints inventory labels with the configured
// Zebra printer.
type LabelService struct {
	items     domain.InventoryRepository
	settings  domain.SettingsRepository
	retry     worker.RetryPolicy
	timeout   time.Duration
	newSender func(labels.Config) (labels.Sender, error)
	logger    *zerolog.Logger
}

func NewLabelService(items domain.InventoryRepository, settings domain.SettingsRepository, retry worker.RetryPolicy, logger *zerolog.Logger) *LabelService {
	return &LabelService{
		items:     items,
		settings:  settings,
		retry:     retry,
		newSender: labels.NewSender,
		logger:    logger,
	}
}

func (s *LabelService) load(ctx context.Context, ids []int64, printing bool) (labels.Config, []models.Item, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return labels.Config{}, nil, err
	}
	cfg := labels.ConfigFromSettings(settings)
	if printing && !cfg.Enabled {
		return labels.Config{}, nil, ErrPrintingDisabled
	}
	if len(ids) == 0 {
		return labels.Config{}, nil, fmt.Errorf("%w: no item selected", ErrValidation)
	}
	items, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		return labels.Config{}, nil, err
	}
	if len(items) == 0 {
		return labels.Config{}, nil, fmt.Errorf("items %v: %w", ids, ErrNoItems)
	}
	return cfg, items, nil
}

// WithTimeout bounds a whole print job, retries included.
func (s *LabelService) WithTimeout(d time.Duration) *LabelService {
	s.timeout = d
	return s
}

// Preview returns the ZPL that Print would send.
func (s *LabelService) Preview(ctx context.Context, ids []int64) ([]string, error) {
	cfg, items, err := s.load(ctx, ids, false)
	if err != nil {
		return nil, err
	}
	return labels.RenderAll(cfg, items), nil
}

// Print sends one label per item and returns how many were sent.
func (s *LabelService) Print(ctx context.Context, ids []int64) (int, error) {
	cfg, items, err := s.load(ctx, ids, true)
	if err != nil {
		return 0, err
	}

	sender, err := s.newSender(cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	zpl := labels.RenderAll(cfg, items)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := labels.WithRetry(sender, s.retry, s.logger).Send(ctx, zpl); err != nil {
		s.logger.Error().Err(err).Str("method", cfg.Method).Int("labels", len(zpl)).Msg("Label printing failed")
		return 0, fmt.Errorf("failed to print labels: %w", err)
	}

	metrics.AddLabelsPrinted(cfg.Method, len(zpl))
	s.logger.Info().Str("method", cfg.Method).Int("labels", len(zpl)).Msg("Labels printed")
	return len(zpl), nil
}
