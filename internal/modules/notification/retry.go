package notification

import (
	"context"
	"encoding/json"
	"time"

	"kutable/internal/domain"
)

var backoffSchedule = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// Backoff is how long a row must sit after its last attempt before it is retried.
func Backoff(attempts int) time.Duration {
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(backoffSchedule) {
		i = len(backoffSchedule) - 1
	}
	return backoffSchedule[i]
}

// retryCutoffs is the updated_at cutoff per attempt count, in backoff order.
func retryCutoffs(now time.Time) []time.Time {
	out := make([]time.Time, len(backoffSchedule))
	for i, d := range backoffSchedule {
		out[i] = now.Add(-d)
	}
	return out
}

// Eligible reports whether the sweep may re-send n at now. Queued rows with a provider
// id are in flight at the provider and are left alone.
func Eligible(n *domain.Notification, now time.Time, maxAttempts int) bool {
	if n.Attempts >= maxAttempts {
		return false
	}
	switch n.Status {
	case domain.NotificationFailed:
	case domain.NotificationQueued:
		if n.ProviderMessageID != "" {
			return false
		}
	default:
		return false
	}
	return now.Sub(n.UpdatedAt) > Backoff(n.Attempts)
}

type RetryResult struct {
	Scanned   int `json:"scanned"`
	Retried   int `json:"retried"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RetryFailed makes one pass over due notifications. Each row is claimed with a
// conditional update first, so overlapping sweeps never double-send.
func (s *Service) RetryFailed(ctx context.Context, now time.Time) (RetryResult, error) {
	var res RetryResult

	rows, err := s.repo.ListRetryCandidates(ctx, retryCutoffs(now), s.cfg.MaxAttempts, s.cfg.RetryBatch)
	if err != nil {
		return res, err
	}
	res.Scanned = len(rows)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := &rows[i]
		if !Eligible(n, now, s.cfg.MaxAttempts) {
			continue
		}

		log := s.log.With().Str("notification_id", n.ID).Int("attempts", n.Attempts).Logger()
		claimed, err := s.repo.ClaimForRetry(ctx, n)
		if err != nil {
			return res, err
		}
		if !claimed {
			log.Debug().Msg("notification claimed by another sweep")
			continue
		}
		res.Retried++

		msg, err := s.rerender(n)
		if err != nil {
			log.Error().Err(err).Msg("notification cannot be rendered, giving up")
			if rerr := s.repo.RecordAttempt(ctx, n.ID, domain.NotificationFailed, "", err.Error()); rerr != nil {
				log.Error().Err(rerr).Msg("record attempt failed")
			}
			res.Failed++
			continue
		}
		if err := s.attempt(ctx, n, msg); err != nil {
			res.Failed++
			continue
		}
		res.Succeeded++
	}

	s.log.Info().
		Int("scanned", res.Scanned).
		Int("retried", res.Retried).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("notification retry sweep finished")
	return res, nil
}

func (s *Service) rerender(n *domain.Notification) (Rendered, error) {
	payload := map[string]any{}
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			return Rendered{}, err
		}
	}
	return Render(n.Template, n.Channel, payload)
}
