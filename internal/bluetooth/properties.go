package bluetooth

import (
	"sort"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// propertiesFromDBus converts a Device1 property map into property events in
// key order. Values of an unexpected shape are skipped rather than rejected;
// the remaining properties still describe the device.
func propertiesFromDBus(props map[string]dbus.Variant) []device.Property {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]device.Property, 0, len(keys))
	for _, k := range keys {
		if p, ok := propertyFromDBus(k, props[k].Value()); ok {
			out = append(out, p)
		}
	}

	return out
}

func propertyFromDBus(key string, v any) (device.Property, bool) {
	switch key {
	case "Name":
		s, ok := v.(string)
		return device.NameProperty(s), ok
	case "AddressType":
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		t, err := device.ParseAddressType(s)
		return device.AddressTypeProperty(t), err == nil
	case "Class":
		n, ok := v.(uint32)
		return device.ClassProperty(n), ok
	case "Appearance":
		n, ok := v.(uint16)
		return device.AppearanceProperty(n), ok
	case "Paired":
		b, ok := v.(bool)
		return device.PairedProperty(b), ok
	case "Connected":
		b, ok := v.(bool)
		return device.ConnectedProperty(b), ok
	case "Trusted":
		b, ok := v.(bool)
		return device.TrustedProperty(b), ok
	case "Blocked":
		b, ok := v.(bool)
		return device.BlockedProperty(b), ok
	case "WakeAllowed":
		b, ok := v.(bool)
		return device.WakeAllowedProperty(b), ok
	case "LegacyPairing":
		b, ok := v.(bool)
		return device.LegacyPairingProperty(b), ok
	case "ServicesResolved":
		b, ok := v.(bool)
		return device.ServicesResolvedProperty(b), ok
	case "Alias":
		s, ok := v.(string)
		return device.AliasProperty(s), ok
	case "Icon":
		s, ok := v.(string)
		return device.IconProperty(s), ok
	case "Modalias":
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		m, err := device.ParseModalias(s)
		return device.ModaliasProperty(m), err == nil
	case "UUIDs":
		list, ok := v.([]string)
		if !ok {
			return nil, false
		}
		set := make(device.ServiceSet, len(list))
		for _, s := range list {
			if id, err := uuid.Parse(s); err == nil {
				set[id] = struct{}{}
			}
		}
		return device.UUIDsProperty(set), true
	case "ManufacturerData":
		m, ok := v.(map[uint16]dbus.Variant)
		if !ok {
			return nil, false
		}
		data := make(map[uint16][]byte, len(m))
		for id, payload := range m {
			if b, ok := payload.Value().([]byte); ok {
				data[id] = b
			}
		}
		return device.ManufacturerDataProperty(data), true
	case "AdvertisingData":
		m, ok := v.(map[byte]dbus.Variant)
		if !ok {
			return nil, false
		}
		data := make(map[uint8][]byte, len(m))
		for typ, payload := range m {
			if b, ok := payload.Value().([]byte); ok {
				data[typ] = b
			}
		}
		return device.AdvertisingDataProperty(data), true
	case "AdvertisingFlags":
		b, ok := v.([]byte)
		return device.AdvertisingFlagsProperty(b), ok
	case "TxPower":
		n, ok := v.(int16)
		return device.TxPowerProperty(n), ok
	case "RSSI":
		n, ok := v.(int16)
		return device.RSSIProperty(n), ok
	case "ServiceData":
		m, ok := v.(map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		data := make(map[uuid.UUID][]byte, len(m))
		for s, payload := range m {
			id, err := uuid.Parse(s)
			if err != nil {
				continue
			}
			if b, ok := payload.Value().([]byte); ok {
				data[id] = b
			}
		}
		return device.ServiceDataProperty(data), true
	}

	// Address arrives out of band; Adapter, Bonded, Sets and friends are not
	// part of the snapshot.
	return nil, false
}
