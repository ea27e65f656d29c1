package transport

import (
	"context"
	"testing"

	"github.com/google/gousb"
)

func TestClassifyUSBDevice(t *testing.T) {
	known := append([]KnownDevice(nil), KnownDevices...)
	known = append(known, KnownDevice{VendorID: 0xCAFE, ProductID: 0x0042, Description: "Lab bridge"})

	tests := []struct {
		name    string
		desc    gousb.DeviceDesc
		wantOK  bool
		wantLbl string
	}{
		{
			name:    "default bridge",
			desc:    gousb.DeviceDesc{Vendor: VendorIDBridge, Product: ProductIDBridge, Bus: 1, Address: 4},
			wantOK:  true,
			wantLbl: "USB register bridge",
		},
		{
			name:    "extra device",
			desc:    gousb.DeviceDesc{Vendor: 0xCAFE, Product: 0x0042},
			wantOK:  true,
			wantLbl: "Lab bridge",
		},
		{
			name: "unrelated device",
			desc: gousb.DeviceDesc{Vendor: 0x0483, Product: 0x3748},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := classifyUSBDevice(&tt.desc, known)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if info.Kind != InterfaceKindUSB {
				t.Errorf("Kind = %s", info.Kind)
			}
			if info.Label() != tt.wantLbl {
				t.Errorf("Label() = %q, want %q", info.Label(), tt.wantLbl)
			}
			if info.Bus != tt.desc.Bus || info.Address != tt.desc.Address {
				t.Errorf("bus/address = %d/%d", info.Bus, info.Address)
			}
		})
	}
}

func TestInterfaceLabel(t *testing.T) {
	tests := []struct {
		info InterfaceInfo
		want string
	}{
		{InterfaceInfo{Description: "Simulator (no hardware)"}, "Simulator (no hardware)"},
		{InterfaceInfo{Kind: InterfaceKindUSB, VendorID: 0x1209, ProductID: 0x0001}, "usb (1209:0001)"},
		{InterfaceInfo{VendorID: 0xCAFE, ProductID: 0x0042}, "Interface CAFE:0042"},
	}
	for _, tt := range tests {
		if got := tt.info.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestDiscoverInterfaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping USB enumeration in short mode")
	}

	infos, err := DiscoverInterfaces(context.Background())
	if err != nil {
		t.Skipf("USB enumeration unavailable: %v", err)
	}
	if len(infos) == 0 || infos[len(infos)-1].Kind != InterfaceKindSim {
		t.Errorf("simulator entry missing: %+v", infos)
	}
}
