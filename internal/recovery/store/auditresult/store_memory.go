// Package auditresult is the audit ledger: one result per shipment.
//
// Error Contract:
//   - Record returns sentinel.ErrConflict when the shipment already has a result
//   - Get returns sentinel.ErrNotFound when it does not
//   - Replace returns sentinel.ErrNotFound or sentinel.ErrStaleVersion
package auditresult

import (
	"context"
	"fmt"
	"sync"

	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
)

// InMemoryStore keeps audit results in memory for tests/dev.
type InMemoryStore struct {
	mu         sync.RWMutex
	byShipment map[id.ShipmentID]*models.AuditResult
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byShipment: make(map[id.ShipmentID]*models.AuditResult)}
}

func (s *InMemoryStore) Record(_ context.Context, result *models.AuditResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byShipment[result.ShipmentID]; ok {
		return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrConflict)
	}
	cp := *result
	s.byShipment[result.ShipmentID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, shipmentID id.ShipmentID) (*models.AuditResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byShipment[shipmentID]
	if !ok {
		return nil, fmt.Errorf("audit for shipment %s: %w", shipmentID, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) Replace(_ context.Context, result *models.AuditResult, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byShipment[result.ShipmentID]
	if !ok {
		return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrNotFound)
	}
	if current.Version != expectedVersion || current.ID != result.ID || result.Version != expectedVersion+1 {
		return fmt.Errorf("audit for shipment %s at version %d: %w", result.ShipmentID, current.Version, sentinel.ErrStaleVersion)
	}
	cp := *result
	s.byShipment[result.ShipmentID] = &cp
	return nil
}
