package alert

import (
	"context"
	"errors"
)

// Service serves a user's alert inbox.
type Service struct {
	repo Repository
}

// NewService creates a new alert inbox service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's alerts, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]*Alert, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

// UnreadCount returns the number of unread alerts.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// Acknowledge marks one of the user's alerts as read. Alerts owned by other
// users are reported as not found.
func (s *Service) Acknowledge(ctx context.Context, userID, alertID string) (*Alert, error) {
	a, err := s.repo.Get(ctx, alertID)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAlertNotFound
	}

	if a.Status == StatusAcknowledged {
		return a, nil
	}

	a.Acknowledge()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
