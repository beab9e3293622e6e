package shipments

import (
	"context"
	"fmt"
	"strings"

	"github.com/cargodesk-erp/cargodesk-erp/internal/shared"
)

// Repository defines data access methods for shipments.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Shipment, int, error)
	Get(ctx context.Context, id int64) (Shipment, error)
	Create(ctx context.Context, shipment Shipment) (Shipment, error)
	Update(ctx context.Context, shipment Shipment) (Shipment, error)
	Delete(ctx context.Context, id int64) error
}

// Service handles shipment business logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns shipments matching the filters plus a total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Shipment, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches a shipment by id.
func (s *Service) Get(ctx context.Context, id int64) (Shipment, error) {
	if id <= 0 {
		return Shipment{}, fmt.Errorf("%w: invalid shipment id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create books a new shipment in draft status.
func (s *Service) Create(ctx context.Context, req CreateShipmentRequest) (Shipment, error) {
	shipment := Shipment{
		Reference:   strings.TrimSpace(req.Reference),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		Carrier:     strings.TrimSpace(req.Carrier),
		Status:      StatusDraft,
		WeightKg:    req.WeightKg,
		Notes:       strings.TrimSpace(req.Notes),
	}
	if shipment.Reference == "" {
		return Shipment{}, fmt.Errorf("%w: reference required", shared.ErrValidation)
	}
	if shipment.Origin == "" || shipment.Destination == "" {
		return Shipment{}, fmt.Errorf("%w: origin and destination required", shared.ErrValidation)
	}
	return s.repo.Create(ctx, shipment)
}

// Update replaces the editable fields of a shipment.
func (s *Service) Update(ctx context.Context, id int64, req UpdateShipmentRequest) (Shipment, error) {
	if id <= 0 {
		return Shipment{}, fmt.Errorf("%w: invalid shipment id", shared.ErrValidation)
	}
	shipment, err := s.repo.Get(ctx, id)
	if err != nil {
		return Shipment{}, err
	}
	shipment.Origin = strings.TrimSpace(req.Origin)
	shipment.Destination = strings.TrimSpace(req.Destination)
	shipment.Carrier = strings.TrimSpace(req.Carrier)
	shipment.Status = req.Status
	shipment.WeightKg = req.WeightKg
	shipment.Notes = strings.TrimSpace(req.Notes)
	return s.repo.Update(ctx, shipment)
}

// Delete removes a shipment.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid shipment id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
