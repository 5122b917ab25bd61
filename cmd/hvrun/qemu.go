package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// qemuProcess is one launched qemu-system-riscv64 child plus the terminal
// state hvrun put stdin into for the guest console's benefit, restored on
// every exit path (clean shutdown, signal, crash).
type qemuProcess struct {
	cmd      *exec.Cmd
	console  io.ReadCloser
	oldState *term.State
}

// startQEMU launches qemu-system-riscv64 as its own process group, so a
// SIGINT hvrun receives can be forwarded to the whole group in one
// unix.Kill call rather than hunting down children individually.
func startQEMU(ctx context.Context, cfg runConfig) (*qemuProcess, error) {
	args := []string{
		"-M", "virt",
		"-m", "512M",
		"-nographic",
		"-kernel", cfg.hvPath,
	}
	if cfg.firmware != "" {
		args = append(args, "-bios", cfg.firmware)
	}
	if cfg.imagePath != "" {
		args = append(args, "-device", fmt.Sprintf("loader,file=%s,addr=0x80400000", cfg.imagePath))
	}

	cmd := exec.CommandContext(ctx, "qemu-system-riscv64", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping qemu stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	var oldState *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return nil, fmt.Errorf("putting terminal in raw mode: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		if oldState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), oldState)
		}
		return nil, fmt.Errorf("starting qemu: %w", err)
	}

	go forwardSignals(ctx, cmd)

	return &qemuProcess{cmd: cmd, console: stdout, oldState: oldState}, nil
}

// forwardSignals relays hvrun's own cancellation to qemu's whole process
// group, since qemu-system-riscv64 otherwise survives a plain ^C delivered
// only to hvrun itself when stdin is in raw mode.
func forwardSignals(ctx context.Context, cmd *exec.Cmd) {
	<-ctx.Done()
	if cmd.Process == nil {
		return
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return
	}
	_ = unix.Kill(-pgid, unix.SIGTERM)
}

// relayConsole copies the guest's UART output to hvrun's own stdout, and
// feeds every line through the counter store so a vmexit-counter report
// line (emitted by the hypervisor's own console logging) updates the live
// snapshot --debug-http and --pprof-out read from.
func relayConsole(ctx context.Context, q *qemuProcess, counters *counterStore) error {
	scanner := bufio.NewScanner(q.console)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Println(line)
		counters.observeLine(line)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if err := scanner.Err(); err != nil && !strings.Contains(err.Error(), "file already closed") {
		return err
	}
	return nil
}

// waitAndReap blocks until qemu exits (or ctx is cancelled and the signal
// forwarder has already asked it to), restoring the terminal's prior state
// exactly once regardless of which path got there first.
func waitAndReap(ctx context.Context, q *qemuProcess) error {
	err := q.cmd.Wait()
	if q.oldState != nil {
		if rerr := term.Restore(int(os.Stdin.Fd()), q.oldState); rerr != nil {
			log.Printf("hvrun: restoring terminal state: %v", rerr)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}
