// Package alert emails users a digest of pantry items that are about to
// expire or already have.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/wastenot/internal/cache"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// Sweeper periodically finds expiring items and mails each owner once per
// day.
type Sweeper struct {
	repo     repository.AlertRepository
	mailer   Mailer
	sent     cache.Cache
	logger   *slog.Logger
	interval time.Duration
	baseURL  string
	now      func() time.Time
}

// NewSweeper creates a sweeper. sent remembers who was mailed today so a
// restart or a short interval does not send duplicates.
func NewSweeper(repo repository.AlertRepository, mailer Mailer, sent cache.Cache, logger *slog.Logger, interval time.Duration, baseURL string) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		repo:     repo,
		mailer:   mailer,
		sent:     sent,
		logger:   logger.With(slog.String("component", "alert")),
		interval: interval,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiry alert sweeper started", slog.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.logger.Error("expiry sweep finished with errors", slog.Int("sent", n), slog.String("error", err.Error()))
		} else {
			s.logger.Info("expiry sweep finished", slog.Int("sent", n))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("expiry alert sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep mails every user with active items expiring within the expiring
// window. A failure for one user does not stop the others; all failures are
// joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := model.DateOf(s.now())
	recipients, err := s.repo.ExpiringBefore(ctx, today.AddDays(model.ExpiringWindowDays))
	if err != nil {
		return 0, fmt.Errorf("listing expiring items: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, r := range recipients {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		key := sentKey(r.UserID, today)
		if done, err := s.sent.Exists(ctx, key); err == nil && done {
			continue
		}

		d, err := BuildDigest(r, today, s.baseURL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.mailer.Send(ctx, d.To, d.Subject, d.Body); err != nil {
			s.logger.Warn("expiry digest not sent", slog.String("userID", r.UserID), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if err := s.sent.Set(ctx, key, []byte("1"), 24*time.Hour); err != nil {
			s.logger.Warn("recording sent digest", slog.String("userID", r.UserID), slog.String("error", err.Error()))
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func sentKey(userID string, day model.Date) string {
	return "alert:" + userID + ":" + day.String()
}
