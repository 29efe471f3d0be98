// Package store persists shipment records.
//
// Error Contract:
//   - Get returns sentinel.ErrNotFound when the shipment does not exist
//   - Save returns sentinel.ErrConflict when the ID or (carrier, tracking_number) is taken
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
)

type trackingKey struct {
	carrier  id.CarrierCode
	tracking string
}

// InMemoryStore keeps shipments in memory for tests/dev.
type InMemoryStore struct {
	mu         sync.RWMutex
	shipments  map[id.ShipmentID]*shipment.Shipment
	byTracking map[trackingKey]id.ShipmentID
}

// NewInMemory constructs an empty shipment store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		shipments:  make(map[id.ShipmentID]*shipment.Shipment),
		byTracking: make(map[trackingKey]id.ShipmentID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, sh *shipment.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shipments[sh.ID]; ok {
		return fmt.Errorf("shipment %s: %w", sh.ID, sentinel.ErrConflict)
	}
	key := trackingKey{carrier: sh.Carrier, tracking: strings.TrimSpace(sh.TrackingNumber)}
	if _, ok := s.byTracking[key]; ok {
		return fmt.Errorf("tracking number %s/%s: %w", sh.Carrier, key.tracking, sentinel.ErrConflict)
	}
	s.shipments[sh.ID] = sh.Clone()
	s.byTracking[key] = sh.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, shipmentID id.ShipmentID) (*shipment.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return nil, fmt.Errorf("shipment %s: %w", shipmentID, sentinel.ErrNotFound)
	}
	return sh.Clone(), nil
}
