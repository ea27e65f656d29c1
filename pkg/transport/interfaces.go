package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// InterfaceKind categorizes transport families.
type InterfaceKind string

const (
	InterfaceKindUSB InterfaceKind = "usb"
	InterfaceKindSim InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected transport.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Interface %04X:%04X", i.VendorID, i.ProductID)
}

// KnownDevice is a USB VID/PID pair recognised as a register bridge.
type KnownDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// KnownDevices lists the register bridges DiscoverInterfaces looks for.
var KnownDevices = []KnownDevice{
	{VendorID: VendorIDBridge, ProductID: ProductIDBridge, Description: "USB register bridge"},
}

// DiscoverInterfaces enumerates connected USB devices matching KnownDevices
// and extra. It always returns the simulator entry last so callers can work
// without hardware connected.
func DiscoverInterfaces(ctx context.Context, extra ...KnownDevice) ([]InterfaceInfo, error) {
	known := append(append([]KnownDevice(nil), KnownDevices...), extra...)

	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc, known); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc, known []KnownDevice) (InterfaceInfo, bool) {
	for _, k := range known {
		if uint16(desc.Vendor) == k.VendorID && uint16(desc.Product) == k.ProductID {
			return InterfaceInfo{
				Kind:        InterfaceKindUSB,
				Description: k.Description,
				VendorID:    k.VendorID,
				ProductID:   k.ProductID,
				Bus:         desc.Bus,
				Address:     desc.Address,
			}, true
		}
	}
	return InterfaceInfo{}, false
}
