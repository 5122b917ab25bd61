// Package manifest reads the YAML file cmd/hvimg and cmd/hvboardgen both
// consume: a board description plus a guest image to pack. Mirrors the
// bundle.Metadata/BootConfig split the host tooling in the retrieval pack
// uses for its own YAML manifests, restated around a board/guest instead of
// a VM bundle.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level YAML document.
type Manifest struct {
	// Board names which compile-time hv/board descriptor this manifest
	// targets (e.g. "qemuvirt"), used by cmd/hvboardgen to name its
	// generated file. cmd/hvrun does not read the manifest's board; it
	// always passes -M virt to QEMU.
	Board string `yaml:"board"`

	// RequiresHV is a semver constraint (github.com/Masterminds/semver/v3
	// syntax, e.g. ">=0.4.0") cmd/hvimg checks against the hypervisor
	// build version before packing, refusing to produce an image for an
	// incompatible build.
	RequiresHV string `yaml:"requires_hv"`

	Guest     GuestConfig `yaml:"guest"`
	BoardSpec BoardSpec   `yaml:"board_spec"`
}

// GuestConfig names the files cmd/hvimg packs into a container image.
type GuestConfig struct {
	ELFPath string `yaml:"elf"`
	DTBPath string `yaml:"dtb"`
}

// MMIOWindow mirrors hv/board.MMIOWindow in YAML form.
type MMIOWindow struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// BoardSpec mirrors hv/board.Board in YAML form: everything
// cmd/hvboardgen needs to emit a compile-time board_<name>.go file.
type BoardSpec struct {
	ClockFreq    uint64       `yaml:"clock_freq"`
	MMIO         []MMIOWindow `yaml:"mmio"`
	PhysMemBase  uint64       `yaml:"phys_mem_base"`
	PhysMemSize  uint64       `yaml:"phys_mem_size"`
	KernBase     uint64       `yaml:"kern_base"`
	GuestDTBAddr uint64       `yaml:"guest_dtb_addr"`
	GuestBinAddr uint64       `yaml:"guest_bin_addr"`
	GuestBinSize uint64       `yaml:"guest_bin_size"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Board == "" {
		return nil, fmt.Errorf("manifest %s: board is required", path)
	}
	return &m, nil
}
