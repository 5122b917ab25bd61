// Command hvrun drives qemu-system-riscv64 against an image built by
// cmd/hvimg, for local iteration and CI smoke tests of spec.md §8's
// end-to-end scenarios. Grounded on the retrieval pack's own QEMU-launching
// dev tools (tinyrange/cc's cmd/cc puts the terminal in raw mode around a
// guest console the same way) combined into one errgroup-managed process
// the way orizon's cmd/orizon supervises its own concurrent subsystems.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	manifestPath := flag.String("manifest", "", "path to the guest/board YAML manifest")
	imagePath := flag.String("image", "", "path to the packed guest image (see cmd/hvimg)")
	firmware := flag.String("bios", "", "path to the SBI firmware blob passed to -bios")
	hvPath := flag.String("hv", "", "path to the built rvhv ELF to run as the QEMU kernel")
	watch := flag.Bool("watch", false, "log a re-pack/restart hint when the packed image or manifest changes")
	debugHTTP := flag.String("debug-http", "", "address to serve a live counters websocket on, e.g. :8090")
	pprofOut := flag.String("pprof-out", "", "write a vmexit-counter sample profile here on exit")
	flag.Parse()

	if *imagePath == "" || *hvPath == "" {
		log.Fatal("usage: hvrun -hv <rvhv.elf> -image <image.bin> [-bios fw.bin] [-watch] [-debug-http addr] [-pprof-out file]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := runConfig{
		manifestPath: *manifestPath,
		imagePath:    *imagePath,
		firmware:     *firmware,
		hvPath:       *hvPath,
		watch:        *watch,
		debugHTTP:    *debugHTTP,
		pprofOut:     *pprofOut,
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("hvrun: %v", err)
	}
}

type runConfig struct {
	manifestPath string
	imagePath    string
	firmware     string
	hvPath       string
	watch        bool
	debugHTTP    string
	pprofOut     string
}

// run launches every subsystem hvrun needs as one errgroup: the QEMU child
// and its console relay always run; --watch and --debug-http each add one
// more goroutine to the group. A failure in any of them cancels gctx, which
// every other goroutine selects on, so one bad subsystem never leaves the
// others running orphaned (the same "one cancels all" shape orizon's own
// cmd/orizon uses for its concurrent subsystems).
func run(ctx context.Context, cfg runConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	counters := newCounterStore()

	qemu, err := startQEMU(gctx, cfg)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return relayConsole(gctx, qemu, counters)
	})
	g.Go(func() error {
		return waitAndReap(gctx, qemu)
	})

	if cfg.watch {
		g.Go(func() error {
			return watchAndRelaunch(gctx, cfg)
		})
	}
	if cfg.debugHTTP != "" {
		g.Go(func() error {
			return serveDebugHTTP(gctx, cfg.debugHTTP, counters)
		})
	}

	err = g.Wait()

	if cfg.pprofOut != "" {
		if perr := writeCounterProfile(cfg.pprofOut, counters.Snapshot()); perr != nil {
			log.Printf("hvrun: writing pprof profile: %v", perr)
		}
	}

	return err
}
