package emergency

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var ErrMissingCoordinates = errors.New("emergency request has no coordinates")

// FeedPublisher pushes row events onto the realtime change feed.
type FeedPublisher interface {
	PublishInsert(ctx context.Context, table string, record any) error
}

type Repository interface {
	CreateRequest(ctx context.Context, req Request) (*Request, error)
}

// Service persists emergency requests and announces them on the feed, where
// every subscribed nurse router picks them up.
type Service struct {
	repo Repository
	feed FeedPublisher
	log  zerolog.Logger
}

func NewService(repo Repository, feed FeedPublisher, log zerolog.Logger) *Service {
	return &Service{repo: repo, feed: feed, log: log}
}

func (s *Service) CreateRequest(ctx context.Context, req Request) (*Request, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return nil, ErrMissingCoordinates
	}

	switch req.Urgency {
	case UrgencyCritical, UrgencyWithinHour, UrgencyScheduled:
	default:
		req.Urgency = UrgencyScheduled
	}
	req.Status = RequestOpen

	created, err := s.repo.CreateRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create emergency request: %w", err)
	}

	rec := requestRecord{
		ID:          created.ID.String(),
		PatientID:   created.PatientID.String(),
		PatientName: created.PatientName,
		Latitude:    created.Latitude,
		Longitude:   created.Longitude,
		Urgency:     string(created.Urgency),
		Status:      string(created.Status),
	}
	if created.Address != nil {
		rec.Address = *created.Address
	}

	// Persisting succeeded; a feed failure only delays discovery until the
	// next poll of the open-requests list.
	if err := s.feed.PublishInsert(ctx, FeedTable, rec); err != nil {
		s.log.Warn().Err(err).Stringer("request_id", created.ID).Msg("publish emergency feed event failed")
	}

	return created, nil
}
