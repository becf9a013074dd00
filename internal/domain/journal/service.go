package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultLimit = 50

// Service handles journal operations.
type Service struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewService creates a new journal service.
func NewService(resolver Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{resolver: resolver, logger: logger}
}

// Log records an entry, filling in the id and timestamp if missing.
func (s *Service) Log(ctx context.Context, deviceID string, entry *Entry) error {
	if entry == nil || strings.TrimSpace(deviceID) == "" {
		return ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.DeviceID = deviceID

	repo, err := s.resolver.JournalFor(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving journal: %w", err)
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging journal entry: %w", err)
	}
	return nil
}

// Recent lists the newest entries first.
func (s *Service) Recent(ctx context.Context, deviceID string, opts ListOptions) ([]Entry, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, ErrInvalidInput
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	repo, err := s.resolver.JournalFor(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("resolving journal: %w", err)
	}
	entries, err := repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	return entries, nil
}
