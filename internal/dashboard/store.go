package dashboard

import (
	"context"
	"sync"

	"github.com/edgetensor/fleetdash/internal/types"
)

// Store is the central device list and selection shared by the views.
//
// Every FetchDevices call takes a request token. A response is applied only
// if no newer fetch has been applied already, so a slow older response can
// never overwrite newer data. Loading stays set until the newest outstanding
// fetch resolves.
type Store struct {
	api API

	mu          sync.RWMutex
	devices     []types.Device
	selected    string
	hasSelected bool
	loading     bool
	issued      uint64 // last token handed out
	applied     uint64 // token of the response the device list came from
}

func NewStore(api API) *Store {
	return &Store{api: api}
}

// FetchDevices loads the device list. On success the list is replaced with
// exactly the payload; on failure the previous list is kept.
func (s *Store) FetchDevices(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	token := s.issued
	s.loading = true
	s.mu.Unlock()

	devices, err := s.api.ListDevices(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.issued {
		s.loading = false
	}
	if err != nil {
		return err
	}
	if token > s.applied {
		s.applied = token
		s.devices = devices
	}
	return nil
}

// SetSelectedDevice selects a device. The id is not checked against the list.
func (s *Store) SetSelectedDevice(deviceID string) {
	s.mu.Lock()
	s.selected = deviceID
	s.hasSelected = true
	s.mu.Unlock()
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.hasSelected = false
	s.mu.Unlock()
}

// Devices returns a copy of the current device list.
func (s *Store) Devices() []types.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.devices == nil {
		return nil
	}
	out := make([]types.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

func (s *Store) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.hasSelected
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}
