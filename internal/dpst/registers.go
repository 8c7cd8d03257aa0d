package dpst

import "fmt"

// Platform identifies the graphics device family. The register layout of
// the histogram block differs per family.
type Platform string

// Supported platform families.
const (
	PlatformHaswell    Platform = "haswell"
	PlatformValleyview Platform = "valleyview"
)

// RegisterSet holds the three histogram block register addresses. Resolved
// once from the platform identity, immutable afterwards.
type RegisterSet struct {
	HistCtl   uint32 // histogram control / bin window index
	HistGuard uint32 // guard band, interrupt enable and status
	HistBin   uint32 // bin data / enhancement table window
}

// Haswell places the block in the north display space; Valleyview moves it
// behind the display MMIO offset on pipe A.
var registerMaps = map[Platform]RegisterSet{
	PlatformHaswell: {
		HistCtl:   0x48260,
		HistGuard: 0x48264,
		HistBin:   0x48268,
	},
	PlatformValleyview: {
		HistCtl:   0x1e1260,
		HistGuard: 0x1e1264,
		HistBin:   0x1e1268,
	},
}

// ResolveRegisters maps a platform family to its register addresses.
// Unknown platforms fail with ErrUnsupported and no other effect.
func ResolveRegisters(platform Platform) (RegisterSet, error) {
	regs, ok := registerMaps[platform]
	if !ok {
		return RegisterSet{}, fmt.Errorf("%w: %q", ErrUnsupported, platform)
	}
	return regs, nil
}

// SupportedPlatforms lists the known platform families.
func SupportedPlatforms() []Platform {
	return []Platform{PlatformHaswell, PlatformValleyview}
}

// Histogram geometry and fixed-point ranges.
const (
	// HistogramBins is the number of luminance buckets the engine
	// classifies pixels into.
	HistogramBins = 32

	// EnhancementTableEntries is the size of the image enhancement table.
	EnhancementTableEntries = 33

	// MaxFactor is the fixed-point representation of 100.00%: a backlight
	// factor of MaxFactor applies no reduction.
	MaxFactor = 10000

	// enhancementScale converts the agent's 0..10000 range into the
	// device's native fixed point: entry * enhancementScale / MaxFactor.
	enhancementScale = 0x200
)

// HistCtl register bits.
const (
	ieHistogramEnable   = 1 << 31 // histogram collection logic running
	ieModTableEnable    = 1 << 27 // enhancement table applied to output
	hsvIntensityMode    = 1 << 24 // classify on HSV intensity
	enhancementModeMult = 2 << 13 // multiplicative blend of table entries
	binRegFunctionIE    = 1 << 11 // bin window addresses the IE table, not counts
	binRegIndexMask     = 0x7f    // current window index, auto-incremented by hw
)

// HistGuard register bits. The low 22 bits hold the guard-band threshold;
// the delay field sits above it.
const (
	histogramIRQEnable   = 1 << 31
	histogramEventStatus = 1 << 30 // write 1 to clear the pending interrupt
	guardDelayShift      = 22
)

// HistBin register bits.
const (
	histogramBusy = 1 << 31 // engine mid-update, count invalid
	binCountMask  = 0x3fffff
)
