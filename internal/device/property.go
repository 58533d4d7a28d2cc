package device

import "github.com/google/uuid"

// Property is a single typed property-change event. The set of
// implementations is closed; each one sets exactly one Device field.
type Property interface {
	apply(d *Device)
}

type (
	NameProperty             string
	AddressTypeProperty      AddressType
	ClassProperty            uint32
	AppearanceProperty       uint16
	PairedProperty           bool
	ConnectedProperty        bool
	TrustedProperty          bool
	BlockedProperty          bool
	WakeAllowedProperty      bool
	LegacyPairingProperty    bool
	ServicesResolvedProperty bool
	AliasProperty            string
	ModaliasProperty         Modalias
	IconProperty             string
	UUIDsProperty            ServiceSet
	ManufacturerDataProperty map[uint16][]byte
	AdvertisingDataProperty  map[uint8][]byte
	AdvertisingFlagsProperty []byte
	TxPowerProperty          int16
	RSSIProperty             int16
	ServiceDataProperty      map[uuid.UUID][]byte
)

// FromProperties folds props into a Device, last write wins per field. Fields
// never mentioned keep their zero value, including the timestamp and address,
// which callers attach separately. Folding never fails.
func FromProperties(props []Property) Device {
	var d Device
	for _, p := range props {
		if p != nil {
			p.apply(&d)
		}
	}
	return d
}

func (p NameProperty) apply(d *Device) { d.Name = ptr(string(p)) }

func (p AddressTypeProperty) apply(d *Device) { d.AddressType = ptr(AddressType(p)) }

func (p ClassProperty) apply(d *Device) { d.Class = ptr(uint32(p)) }

func (p AppearanceProperty) apply(d *Device) { d.Appearance = ptr(uint16(p)) }

func (p PairedProperty) apply(d *Device) { d.Paired = bool(p) }

func (p ConnectedProperty) apply(d *Device) { d.Connected = bool(p) }

func (p TrustedProperty) apply(d *Device) { d.Trusted = bool(p) }

func (p BlockedProperty) apply(d *Device) { d.Blocked = bool(p) }

func (p WakeAllowedProperty) apply(d *Device) { d.WakeAllowed = bool(p) }

func (p LegacyPairingProperty) apply(d *Device) { d.LegacyPairing = bool(p) }

func (p ServicesResolvedProperty) apply(d *Device) { d.ServicesResolved = bool(p) }

func (p AliasProperty) apply(d *Device) { d.Alias = ptr(string(p)) }

func (p ModaliasProperty) apply(d *Device) { d.Modalias = ptr(Modalias(p)) }

func (p IconProperty) apply(d *Device) { d.Icon = ptr(string(p)) }

func (p TxPowerProperty) apply(d *Device) { d.TxPower = ptr(int16(p)) }

func (p RSSIProperty) apply(d *Device) { d.RSSI = ptr(int16(p)) }

// The collection properties copy their payload so a Device never aliases
// the caller's event data.

func (p UUIDsProperty) apply(d *Device) {
	d.UUIDs = ServiceSet(p).clone()
}

func (p ManufacturerDataProperty) apply(d *Device) {
	d.ManufacturerData = cloneByteMap(map[uint16][]byte(p))
}

func (p AdvertisingDataProperty) apply(d *Device) {
	d.AdvertisingData = cloneByteMap(map[uint8][]byte(p))
}

func (p AdvertisingFlagsProperty) apply(d *Device) {
	d.AdvertisingFlags = append([]byte(nil), p...)
}

func (p ServiceDataProperty) apply(d *Device) {
	d.ServiceData = cloneByteMap(map[uuid.UUID][]byte(p))
}

func (s ServiceSet) clone() ServiceSet {
	if s == nil {
		return nil
	}
	c := make(ServiceSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func ptr[T any](v T) *T {
	return &v
}
