package bluetooth

import (
	"context"
	"path"
	"sort"
	"strings"

	"codeberg.org/mutker/bluez-monitor/internal/device"
	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	bluezService        = "org.bluez"
	adapterInterface    = "org.bluez.Adapter1"
	deviceInterface     = "org.bluez.Device1"
	objectManager       = "org.freedesktop.DBus.ObjectManager"
	propertiesInterface = "org.freedesktop.DBus.Properties"

	signalInterfacesAdded   = objectManager + ".InterfacesAdded"
	signalInterfacesRemoved = objectManager + ".InterfacesRemoved"
	signalPropertiesChanged = propertiesInterface + ".PropertiesChanged"

	feedBufferSize = 64
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZ opens sessions with the BlueZ daemon on the system bus.
type BlueZ struct {
	adapterName string
}

// NewBlueZ returns an Opener for BlueZ. An empty adapterName selects the
// default adapter, the first one in path order.
func NewBlueZ(adapterName string) *BlueZ {
	return &BlueZ{adapterName: adapterName}
}

func (b *BlueZ) Open(ctx context.Context) (Session, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	return &bluezSession{conn: conn, adapterName: b.adapterName}, nil
}

type bluezSession struct {
	conn        *dbus.Conn
	adapterName string
}

func (s *bluezSession) DefaultAdapter(ctx context.Context) (Adapter, error) {
	objects, err := getManagedObjects(ctx, s.conn)
	if err != nil {
		return nil, err
	}

	adapterPath, ok := selectAdapter(objects, s.adapterName)
	if !ok {
		return nil, errors.New().WithData(ErrAdapterNotFound, s.adapterName)
	}

	return &bluezAdapter{
		conn: s.conn,
		path: adapterPath,
		log:  logger.New("bluez"),
	}, nil
}

func (s *bluezSession) Close() error {
	return s.conn.Close()
}

type bluezAdapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	log  logger.Logger
}

func (a *bluezAdapter) Name() string {
	return path.Base(string(a.path))
}

func (a *bluezAdapter) object() dbus.BusObject {
	return a.conn.Object(bluezService, a.path)
}

func (a *bluezAdapter) SetPowered(ctx context.Context, powered bool) error {
	return a.object().CallWithContext(ctx, propertiesInterface+".Set", 0,
		adapterInterface, "Powered", dbus.MakeVariant(powered)).Err
}

func (a *bluezAdapter) DiscoverDevices(ctx context.Context) (<-chan AdapterEvent, error) {
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(objectManager), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchInterface(objectManager), dbus.WithMatchMember("InterfacesRemoved")},
		{
			dbus.WithMatchInterface(propertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchPathNamespace(a.path),
		},
	}
	for _, m := range matches {
		if err := a.conn.AddMatchSignalContext(ctx, m...); err != nil {
			return nil, err
		}
	}

	signals := make(chan *dbus.Signal, feedBufferSize)
	a.conn.Signal(signals)

	// Listing after subscribing means a device cannot slip between the two.
	objects, err := getManagedObjects(ctx, a.conn)
	if err != nil {
		a.conn.RemoveSignal(signals)
		return nil, err
	}
	known := knownDevices(objects, a.path)

	if err := a.object().CallWithContext(ctx, adapterInterface+".StartDiscovery", 0).Err; err != nil {
		a.conn.RemoveSignal(signals)
		return nil, err
	}

	out := make(chan AdapterEvent, feedBufferSize)
	go a.feed(ctx, signals, known, matches, out)

	return out, nil
}

func (a *bluezAdapter) feed(
	ctx context.Context, signals chan *dbus.Signal, known []device.Address,
	matches [][]dbus.MatchOption, out chan<- AdapterEvent,
) {
	defer close(out)
	defer a.stop(signals, matches)

	send := func(ev AdapterEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, addr := range known {
		if !send(AdapterEvent{Kind: DeviceAdded, Address: addr}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			ev, ok := eventFromSignal(a.path, sig)
			if !ok {
				continue
			}
			if !send(ev) {
				return
			}
		}
	}
}

func (a *bluezAdapter) stop(signals chan *dbus.Signal, matches [][]dbus.MatchOption) {
	a.conn.RemoveSignal(signals)
	for _, m := range matches {
		if err := a.conn.RemoveMatchSignal(m...); err != nil {
			a.log.Debug().Err(err).Msg("Failed to remove signal match")
		}
	}
	if err := a.object().Call(adapterInterface+".StopDiscovery", 0).Err; err != nil {
		a.log.Debug().Err(err).Msg("Failed to stop discovery")
	}
}

func (a *bluezAdapter) DeviceProperties(ctx context.Context, addr device.Address) ([]device.Property, error) {
	var props map[string]dbus.Variant
	err := a.conn.Object(bluezService, devicePath(a.path, addr)).
		CallWithContext(ctx, propertiesInterface+".GetAll", 0, deviceInterface).
		Store(&props)
	if err != nil {
		return nil, err
	}

	return propertiesFromDBus(props), nil
}

func getManagedObjects(ctx context.Context, conn *dbus.Conn) (managedObjects, error) {
	var objects managedObjects
	err := conn.Object(bluezService, "/").
		CallWithContext(ctx, objectManager+".GetManagedObjects", 0).
		Store(&objects)

	return objects, err
}

func selectAdapter(objects managedObjects, name string) (dbus.ObjectPath, bool) {
	var adapters []dbus.ObjectPath
	for p, ifaces := range objects {
		if _, ok := ifaces[adapterInterface]; ok {
			adapters = append(adapters, p)
		}
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i] < adapters[j] })

	for _, p := range adapters {
		if name == "" || path.Base(string(p)) == name {
			return p, true
		}
	}

	return "", false
}

func knownDevices(objects managedObjects, adapterPath dbus.ObjectPath) []device.Address {
	var addrs []device.Address
	for p, ifaces := range objects {
		if _, ok := ifaces[deviceInterface]; !ok || !underAdapter(p, adapterPath) {
			continue
		}
		if addr, ok := addressFromPath(p); ok {
			addrs = append(addrs, addr)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	return addrs
}

// eventFromSignal translates a bus signal into a feed event for the adapter
// at adapterPath. Signals about other adapters or other interfaces are
// dropped.
func eventFromSignal(adapterPath dbus.ObjectPath, sig *dbus.Signal) (AdapterEvent, bool) {
	if sig == nil {
		return AdapterEvent{}, false
	}

	switch sig.Name {
	case signalInterfacesAdded:
		if len(sig.Body) < 2 {
			return AdapterEvent{}, false
		}
		objPath, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok || !underAdapter(objPath, adapterPath) {
			return AdapterEvent{}, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return AdapterEvent{}, false
		}
		if _, ok := ifaces[deviceInterface]; !ok {
			return AdapterEvent{}, false
		}
		return deviceEvent(DeviceAdded, objPath)

	case signalInterfacesRemoved:
		if len(sig.Body) < 2 {
			return AdapterEvent{}, false
		}
		objPath, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok || !underAdapter(objPath, adapterPath) {
			return AdapterEvent{}, false
		}
		ifaces, ok := sig.Body[1].([]string)
		if !ok || !contains(ifaces, deviceInterface) {
			return AdapterEvent{}, false
		}
		return deviceEvent(DeviceRemoved, objPath)

	case signalPropertiesChanged:
		if len(sig.Body) < 1 || !underAdapter(sig.Path, adapterPath) {
			return AdapterEvent{}, false
		}
		if iface, ok := sig.Body[0].(string); !ok || iface != deviceInterface {
			return AdapterEvent{}, false
		}
		return deviceEvent(PropertyChanged, sig.Path)
	}

	return AdapterEvent{}, false
}

func deviceEvent(kind EventKind, objPath dbus.ObjectPath) (AdapterEvent, bool) {
	addr, ok := addressFromPath(objPath)
	if !ok {
		return AdapterEvent{}, false
	}
	return AdapterEvent{Kind: kind, Address: addr}, true
}

func underAdapter(objPath, adapterPath dbus.ObjectPath) bool {
	return strings.HasPrefix(string(objPath), string(adapterPath)+"/")
}

// devicePath returns BlueZ's object path for addr, e.g.
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF.
func devicePath(adapterPath dbus.ObjectPath, addr device.Address) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapterPath) + "/dev_" + strings.ReplaceAll(addr.String(), ":", "_"))
}

func addressFromPath(objPath dbus.ObjectPath) (device.Address, bool) {
	base := path.Base(string(objPath))
	if !strings.HasPrefix(base, "dev_") {
		return device.Address{}, false
	}
	addr, err := device.ParseAddress(strings.ReplaceAll(strings.TrimPrefix(base, "dev_"), "_", ":"))
	if err != nil {
		return device.Address{}, false
	}
	return addr, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
