// Package device holds the snapshot model of one observed bluetooth device.
//
// A Device is the union of every property known about a device at capture
// time. Values are treated as immutable: the With* methods return modified
// copies and never touch the receiver's maps or slices.
package device

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Device is one fully-resolved observation of a bluetooth device.
type Device struct {
	Timestamp        time.Time            `json:"timestamp"`
	Address          Address              `json:"address"`
	AddressType      *AddressType         `json:"address_type"`
	Name             *string              `json:"name"`
	UUIDs            ServiceSet           `json:"uuids"`
	Class            *uint32              `json:"class"`
	Appearance       *uint16              `json:"appearance"`
	Paired           bool                 `json:"paired"`
	Connected        bool                 `json:"connected"`
	Trusted          bool                 `json:"trusted"`
	Blocked          bool                 `json:"blocked"`
	WakeAllowed      bool                 `json:"wake_allowed"`
	LegacyPairing    bool                 `json:"legacy_pairing"`
	Alias            *string              `json:"alias"`
	Modalias         *Modalias            `json:"modalias"`
	Icon             *string              `json:"icon"`
	ManufacturerData map[uint16][]byte    `json:"manufacturer_data"`
	AdvertisingData  map[uint8][]byte     `json:"advertising_data"`
	AdvertisingFlags []byte               `json:"advertising_flags"`
	TxPower          *int16               `json:"tx_power"`
	RSSI             *int16               `json:"rssi"`
	ServiceData      map[uuid.UUID][]byte `json:"service_data"`
	ServicesResolved bool                 `json:"services_resolved"`
}

// WithAddress returns a copy of d carrying addr.
func (d Device) WithAddress(addr Address) Device {
	c := d.Clone()
	c.Address = addr
	return c
}

// WithTimestamp returns a copy of d captured at t.
func (d Device) WithTimestamp(t time.Time) Device {
	c := d.Clone()
	c.Timestamp = t
	return c
}

// Clone returns a deep copy of d. Sinks each receive their own clone so that
// no two delivery tasks share backing storage.
func (d Device) Clone() Device {
	c := d
	c.AddressType = clonePtr(d.AddressType)
	c.Name = clonePtr(d.Name)
	c.UUIDs = maps.Clone(d.UUIDs)
	c.Class = clonePtr(d.Class)
	c.Appearance = clonePtr(d.Appearance)
	c.Alias = clonePtr(d.Alias)
	c.Modalias = clonePtr(d.Modalias)
	c.Icon = clonePtr(d.Icon)
	c.ManufacturerData = cloneByteMap(d.ManufacturerData)
	c.AdvertisingData = cloneByteMap(d.AdvertisingData)
	c.AdvertisingFlags = slices.Clone(d.AdvertisingFlags)
	c.TxPower = clonePtr(d.TxPower)
	c.RSSI = clonePtr(d.RSSI)
	c.ServiceData = cloneByteMap(d.ServiceData)
	return c
}

// DisplayName returns the advertised name, if any.
func (d Device) DisplayName() (string, bool) {
	if d.Name == nil {
		return "", false
	}
	return *d.Name, true
}

// JSON renders d as a single-line JSON object.
func (d Device) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ServiceSet is an unordered set of advertised service UUIDs.
type ServiceSet map[uuid.UUID]struct{}

// NewServiceSet builds a set from ids, dropping duplicates.
func NewServiceSet(ids ...uuid.UUID) ServiceSet {
	s := make(ServiceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s ServiceSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in string order.
func (s ServiceSet) Sorted() []uuid.UUID {
	ids := slices.Collect(maps.Keys(s))
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return ids
}

func (s ServiceSet) MarshalJSON() ([]byte, error) {
	ids := s.Sorted()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return json.Marshal(out)
}

func (s *ServiceSet) UnmarshalJSON(b []byte) error {
	var ids []uuid.UUID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewServiceSet(ids...)
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneByteMap[K comparable](m map[K][]byte) map[K][]byte {
	if m == nil {
		return nil
	}
	c := make(map[K][]byte, len(m))
	for k, v := range m {
		c[k] = slices.Clone(v)
	}
	return c
}
