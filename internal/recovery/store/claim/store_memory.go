// Package claim is the recovery ledger: at most one claim per shipment plus its
// append-only transition history.
//
// Error Contract:
//   - Create returns sentinel.ErrConflict when the shipment already has a claim
//   - FindByID, FindByShipment and Execute return sentinel.ErrNotFound for unknown claims
//   - Execute returns the validate callback's error unchanged and leaves the claim as it was
package claim

import (
	"context"
	"fmt"
	"sync"

	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
)

// InMemoryStore keeps claims in memory for tests/dev. A single mutex covers the
// create check-and-insert and every validate-then-mutate.
type InMemoryStore struct {
	mu          sync.Mutex
	claims      map[id.ClaimID]*models.Claim
	byShipment  map[id.ShipmentID]id.ClaimID
	transitions map[id.ClaimID][]models.ClaimTransition
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		claims:      make(map[id.ClaimID]*models.Claim),
		byShipment:  make(map[id.ShipmentID]id.ClaimID),
		transitions: make(map[id.ClaimID][]models.ClaimTransition),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byShipment[c.ShipmentID]; ok {
		return fmt.Errorf("claim for shipment %s: %w", c.ShipmentID, sentinel.ErrConflict)
	}
	if _, ok := s.claims[c.ID]; ok {
		return fmt.Errorf("claim %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.claims[c.ID] = c.Clone()
	s.byShipment[c.ShipmentID] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) FindByShipment(_ context.Context, shipmentID id.ShipmentID) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claimID, ok := s.byShipment[shipmentID]
	if !ok {
		return nil, fmt.Errorf("claim for shipment %s: %w", shipmentID, sentinel.ErrNotFound)
	}
	return s.claims[claimID].Clone(), nil
}

// Execute runs validate and then mutate against the stored claim while holding the lock.
func (s *InMemoryStore) Execute(_ context.Context, claimID id.ClaimID, validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	if err := validate(c.Clone()); err != nil {
		return nil, err
	}
	next := c.Clone()
	mutate(next)
	s.claims[claimID] = next
	return next.Clone(), nil
}

func (s *InMemoryStore) AppendTransition(_ context.Context, t models.ClaimTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[t.ClaimID]; !ok {
		return fmt.Errorf("claim %s: %w", t.ClaimID, sentinel.ErrNotFound)
	}
	s.transitions[t.ClaimID] = append(s.transitions[t.ClaimID], t)
	return nil
}

// ListTransitions returns the history in append order.
func (s *InMemoryStore) ListTransitions(_ context.Context, claimID id.ClaimID) ([]models.ClaimTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claimID]; !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	out := make([]models.ClaimTransition, len(s.transitions[claimID]))
	copy(out, s.transitions[claimID])
	return out, nil
}
