package dpst

import (
	"errors"
	"testing"
)

func TestResolveRegisters(t *testing.T) {
	tests := []struct {
		platform Platform
		wantCtl  uint32
		wantErr  bool
	}{
		{PlatformHaswell, 0x48260, false},
		{PlatformValleyview, 0x1e1260, false},
		{Platform("skylake"), 0, true},
		{Platform(""), 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			regs, err := ResolveRegisters(tt.platform)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Fatalf("err = %v, want ErrUnsupported", err)
				}
				if regs != (RegisterSet{}) {
					t.Error("failed resolution must not return register state")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRegisters(%s) error: %v", tt.platform, err)
			}
			if regs.HistCtl != tt.wantCtl {
				t.Errorf("HistCtl = 0x%x, want 0x%x", regs.HistCtl, tt.wantCtl)
			}
			if regs.HistGuard != tt.wantCtl+4 || regs.HistBin != tt.wantCtl+8 {
				t.Error("guard and bin registers should follow the control register")
			}
		})
	}
}

func TestSupportedPlatforms(t *testing.T) {
	for _, p := range SupportedPlatforms() {
		if _, err := ResolveRegisters(p); err != nil {
			t.Errorf("advertised platform %s fails to resolve: %v", p, err)
		}
	}
}
