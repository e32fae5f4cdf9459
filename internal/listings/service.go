package listings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relistco/relist-backend/pkg/db/models"
	"github.com/relistco/relist-backend/pkg/enums"
	pkgerrors "github.com/relistco/relist-backend/pkg/errors"
	"github.com/relistco/relist-backend/pkg/logger"
)

// ServiceParams groups dependencies for the listing service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns the listing sale state machine:
//
//	available -> pending -> sold
//	pending   -> available (released)
//
// Sold is terminal; no transition leaves it.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a listing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// Get loads a listing by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	return listing, nil
}

// MarkPending reserves an available listing for an in-flight checkout.
func (s *Service) MarkPending(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id,
		[]enums.ListingStatus{enums.ListingStatusAvailable},
		enums.ListingStatusPending,
	)
}

// MarkSold finalizes a sale. Already-sold listings are treated as success so
// replayed payment events stay idempotent.
func (s *Service) MarkSold(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}

	changed, err := s.repo.TransitionStatus(ctx, id,
		[]enums.ListingStatus{enums.ListingStatusAvailable, enums.ListingStatusPending},
		enums.ListingStatusSold,
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark listing sold")
	}
	if changed {
		s.logg.Info(s.logg.WithListingID(ctx, id.String()), "listing marked sold")
		return nil
	}

	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	if listing.Status == enums.ListingStatusSold {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "listing cannot be marked sold")
}

// MarkAvailable releases a pending reservation. Sold listings never go back.
func (s *Service) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id,
		[]enums.ListingStatus{enums.ListingStatusPending},
		enums.ListingStatusAvailable,
	)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from []enums.ListingStatus, to enums.ListingStatus) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}

	changed, err := s.repo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transition listing status")
	}
	if changed {
		return nil
	}

	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is "+listing.Status.String()).
		WithDetails(map[string]string{"status": listing.Status.String(), "requested": to.String()})
}
