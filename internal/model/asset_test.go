package model

import "testing"

// TestAssetValidate tests the required-field and bus-unit checks.
func TestAssetValidate(t *testing.T) {
	tests := []struct {
		name    string
		asset   Asset
		wantErr bool
	}{
		{"valid", Asset{Tag: "A-1", Name: "Laptop"}, false},
		{"valid with bus unit", Asset{Tag: "A-1", Name: "Laptop", BusUnit: DefaultBusUnit}, false},
		{"missing tag", Asset{Name: "Laptop"}, true},
		{"missing name", Asset{Tag: "A-1"}, true},
		{"unknown bus unit", Asset{Tag: "A-1", Name: "Laptop", BusUnit: "XXXX"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asset.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestAssetSetDefaults tests bus-unit and serial fill-in.
func TestAssetSetDefaults(t *testing.T) {
	a := Asset{Tag: "A-1", Name: "Laptop"}
	a.SetDefaults()

	if a.BusUnit != DefaultBusUnit {
		t.Errorf("BusUnit = %q, want %q", a.BusUnit, DefaultBusUnit)
	}
	if a.Serial != "N/A" {
		t.Errorf("Serial = %q, want N/A", a.Serial)
	}

	b := Asset{Tag: "B-1", Name: "Desk", Serial: "SN12345", BusUnit: DefaultBusUnit}
	b.SetDefaults()
	if b.Serial != "SN12345" {
		t.Errorf("Serial overwritten to %q", b.Serial)
	}
}
