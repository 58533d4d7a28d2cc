package device

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is a 48-bit bluetooth hardware address, most significant byte first.
type Address [6]byte

// ParseAddress parses the colon separated form "AA:BB:CC:DD:EE:FF".
func ParseAddress(s string) (Address, error) {
	var a Address
	parts := strings.Split(s, ":")
	if len(parts) != len(a) {
		return Address{}, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return Address{}, fmt.Errorf("invalid bluetooth address %q", s)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return Address{}, fmt.Errorf("invalid bluetooth address %q: %w", s, err)
		}
		a[i] = b[0]
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressType classifies an LE address.
type AddressType uint8

const (
	AddressTypePublic AddressType = iota
	AddressTypeRandom
)

// ParseAddressType accepts the names BlueZ reports ("public", "random").
func ParseAddressType(s string) (AddressType, error) {
	switch s {
	case "public":
		return AddressTypePublic, nil
	case "random":
		return AddressTypeRandom, nil
	default:
		return 0, fmt.Errorf("unknown address type %q", s)
	}
}

func (t AddressType) String() string {
	switch t {
	case AddressTypePublic:
		return "public"
	case AddressTypeRandom:
		return "random"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

func (t AddressType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *AddressType) UnmarshalText(b []byte) error {
	parsed, err := ParseAddressType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Modalias is the device ID descriptor, e.g. "usb:v1D6Bp0246d0537".
type Modalias struct {
	Source  string `json:"source"`
	Vendor  uint32 `json:"vendor"`
	Product uint32 `json:"product"`
	Device  uint32 `json:"device"`
}

// ParseModalias parses "<source>:v<vendor>p<product>d<device>" with
// hexadecimal ids.
func ParseModalias(s string) (Modalias, error) {
	source, ids, ok := strings.Cut(s, ":")
	if !ok || source == "" {
		return Modalias{}, fmt.Errorf("invalid modalias %q", s)
	}

	m := Modalias{Source: source}
	fields := []struct {
		tag byte
		dst *uint32
	}{
		{'v', &m.Vendor},
		{'p', &m.Product},
		{'d', &m.Device},
	}
	for i, f := range fields {
		if len(ids) < 5 || ids[0] != f.tag {
			return Modalias{}, fmt.Errorf("invalid modalias %q", s)
		}
		end := 5
		if i == len(fields)-1 {
			end = len(ids)
		}
		v, err := strconv.ParseUint(ids[1:end], 16, 32)
		if err != nil {
			return Modalias{}, fmt.Errorf("invalid modalias %q: %w", s, err)
		}
		*f.dst = uint32(v)
		ids = ids[end:]
	}
	return m, nil
}

func (m Modalias) String() string {
	return fmt.Sprintf("%s:v%04Xp%04Xd%04X", m.Source, m.Vendor, m.Product, m.Device)
}
