// Command hvimg packs a guest ELF64 kernel and its DTB blob into the flat
// container hv/guest.ParseContainer expects at a board's GuestBinAddr,
// replacing spec.md §4.10's "embedded/loaded guest image" hand-wave with a
// concrete build step. Grounded on the retrieval pack's own image-building
// CLIs (tinyrange/cc's internal/bundle validates a manifest before staging
// a VM image the same way).
package main

import (
	"bytes"
	"debug/elf"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/schollz/progressbar/v3"

	"hypocaust/hv/guest"
	"hypocaust/internal/buildinfo"
	"hypocaust/internal/manifest"
)

func main() {
	manifestPath := flag.String("manifest", "", "path to the guest/board YAML manifest")
	outPath := flag.String("out", "", "path to write the packed guest image to")
	flag.Parse()

	if *manifestPath == "" || *outPath == "" {
		log.Fatal("usage: hvimg -manifest <manifest.yaml> -out <image.bin>")
	}

	if err := run(*manifestPath, *outPath); err != nil {
		log.Fatalf("hvimg: %v", err)
	}
}

func run(manifestPath, outPath string) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	if err := checkVersion(m.RequiresHV); err != nil {
		return err
	}

	elfBytes, err := os.ReadFile(m.Guest.ELFPath)
	if err != nil {
		return fmt.Errorf("reading guest ELF: %w", err)
	}
	if err := validateELF(elfBytes); err != nil {
		return fmt.Errorf("validating guest ELF: %w", err)
	}

	dtbBytes, err := os.ReadFile(m.Guest.DTBPath)
	if err != nil {
		return fmt.Errorf("reading guest DTB: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output image: %w", err)
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(
		int64(len(elfBytes)+len(dtbBytes)),
		"packing guest image",
	)
	w := progressWriter{w: out, bar: bar}

	if err := guest.WriteContainer(&w, elfBytes, dtbBytes); err != nil {
		return fmt.Errorf("writing packed image: %w", err)
	}
	return nil
}

// checkVersion refuses to pack an image whose manifest declares a
// hypervisor version requirement the current build doesn't satisfy.
func checkVersion(requires string) error {
	if requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(requires)
	if err != nil {
		return fmt.Errorf("parsing requires_hv constraint %q: %w", requires, err)
	}
	version, err := semver.NewVersion(buildinfo.Version)
	if err != nil {
		return fmt.Errorf("parsing hypervisor build version %q: %w", buildinfo.Version, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("hypervisor build %s does not satisfy manifest constraint %q", buildinfo.Version, requires)
	}
	return nil
}

// validateELF re-validates what hv/guest.Parse will later re-derive from
// the packed bytes at boot, using the standard library's fuller ELF reader
// (which hv/guest deliberately avoids, being freestanding) to catch a
// malformed guest image at build time instead of at boot time.
func validateELF(data []byte) error {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("expected a 64-bit ELF, got %s", f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return fmt.Errorf("expected an EM_RISCV ELF, got %s", f.Machine)
	}
	if f.Entry == 0 {
		return fmt.Errorf("ELF entry point is zero")
	}

	loadable := 0
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			loadable++
		}
	}
	if loadable == 0 {
		return fmt.Errorf("no PT_LOAD segments")
	}
	return nil
}

// progressWriter tees every write to both the underlying output file and a
// progressbar, so packing a large guest image reports visible progress.
type progressWriter struct {
	w   *os.File
	bar *progressbar.ProgressBar
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.bar.Add(n)
	}
	return n, err
}
