package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/seal-hub/CraftDroid/pkg/logger"
)

const (
	startingPort       = 5554 // first emulator console port
	maxPorts           = 16   // console ports tried when starting
	DefaultBootTimeout = 3 * time.Minute
)

// Launcher starts a long-running host process and returns a function that
// kills it.
type Launcher func(name string, args ...string) (kill func() error, err error)

// EmulatorOptions configures StartEmulator.
type EmulatorOptions struct {
	AVD         string
	BootTimeout time.Duration

	// Hooks for tests; zero values use the Android SDK from ANDROID_HOME
	// or PATH.
	EmulatorPath string
	ADBPath      string
	Run          Runner
	Launch       Launcher
	PollInterval time.Duration
}

// BootStatus represents emulator boot state
type BootStatus struct {
	StateReady     bool // adb get-state == "device"
	BootCompleted  bool // sys.boot_completed == "1"
	SettingsReady  bool // settings list global succeeds
	PackageManager bool // pm get-max-users succeeds
}

// IsFullyReady returns true if all boot checks passed
func (bs BootStatus) IsFullyReady() bool {
	return bs.StateReady && bs.BootCompleted && bs.SettingsReady && bs.PackageManager
}

func (bs BootStatus) String() string {
	return fmt.Sprintf("state:%v boot:%v settings:%v pm:%v", bs.StateReady, bs.BootCompleted, bs.SettingsReady, bs.PackageManager)
}

var errNotBooted = errors.New("emulator not booted")

// IsEmulator checks if a device serial is an emulator
func IsEmulator(serial string) bool {
	return strings.HasPrefix(serial, "emulator-")
}

// StartEmulator boots an AVD on the first free console port and waits
// until the device accepts package manager commands. The returned device
// kills the emulator on Shutdown.
func StartEmulator(ctx context.Context, opts EmulatorOptions) (*AndroidDevice, error) {
	if opts.BootTimeout <= 0 {
		opts.BootTimeout = DefaultBootTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Run == nil {
		opts.Run = execRunner
	}
	if opts.Launch == nil {
		opts.Launch = execLauncher
	}
	if opts.ADBPath == "" {
		p, err := findADB()
		if err != nil {
			return nil, err
		}
		opts.ADBPath = p
	}
	if opts.EmulatorPath == "" {
		p, err := FindEmulatorBinary()
		if err != nil {
			return nil, err
		}
		opts.EmulatorPath = p
	}
	log := logger.Named("emulator")

	d := &AndroidDevice{adbPath: opts.ADBPath, run: opts.Run, pollInterval: opts.PollInterval}
	out, err := d.adb(ctx, "devices")
	if err != nil {
		return nil, err
	}
	port, err := freePort(ParseDevices(out))
	if err != nil {
		return nil, err
	}
	d.serial = fmt.Sprintf("emulator-%d", port)

	log.Infow("Starting emulator", "avd", opts.AVD, "port", port)
	start := time.Now()
	kill, err := opts.Launch(opts.EmulatorPath,
		"-avd", opts.AVD,
		"-port", fmt.Sprintf("%d", port),
		"-netdelay", "none",
		"-netspeed", "full",
		"-no-boot-anim",
		"-no-snapshot-load",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start emulator process: %w", err)
	}
	d.kill = kill

	if err := d.WaitForBoot(ctx, opts.BootTimeout); err != nil {
		_ = kill()
		return nil, err
	}
	log.Infow("Emulator booted", "serial", d.serial, "duration", time.Since(start))
	return d, nil
}

// freePort returns the first console port whose serial is not taken.
func freePort(serials []string) (int, error) {
	taken := make(map[string]bool, len(serials))
	for _, s := range serials {
		taken[s] = true
	}
	for i := 0; i < maxPorts; i++ {
		port := startingPort + 2*i
		if !taken[fmt.Sprintf("emulator-%d", port)] {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free emulator port in %d-%d", startingPort, startingPort+2*(maxPorts-1))
}

// CheckBootStatus checks all boot conditions of the device.
func (d *AndroidDevice) CheckBootStatus(ctx context.Context) BootStatus {
	var status BootStatus
	status.StateReady = d.isConnected(ctx)
	if !status.StateReady {
		return status
	}
	out, err := d.Shell(ctx, "getprop sys.boot_completed")
	status.BootCompleted = err == nil && strings.TrimSpace(out) == "1"
	_, err = d.Shell(ctx, "settings list global")
	status.SettingsReady = err == nil
	_, err = d.Shell(ctx, "pm get-max-users")
	status.PackageManager = err == nil
	return status
}

// WaitForBoot polls the boot status until the device is fully ready.
func (d *AndroidDevice) WaitForBoot(ctx context.Context, timeout time.Duration) error {
	var last BootStatus
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		last = d.CheckBootStatus(ctx)
		if !last.IsFullyReady() {
			return struct{}{}, errNotBooted
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(d.interval())), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("emulator %s boot timeout after %v (%s)", d.serial, timeout, last)
	}
	return nil
}

// Shutdown stops an emulator: adb emu kill, then the process itself if it
// was started by StartEmulator and is still attached.
func (d *AndroidDevice) Shutdown(ctx context.Context) error {
	log := logger.Named("emulator")
	if _, err := d.adb(ctx, "emu", "kill"); err != nil {
		log.Warnw("adb emu kill failed", "serial", d.serial, "error", err)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if d.isConnected(ctx) {
			return struct{}{}, errNotBooted
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(d.interval())), backoff.WithMaxElapsedTime(30*time.Second))
	if err == nil {
		log.Infow("Emulator shut down", "serial", d.serial)
		return nil
	}
	if d.kill == nil {
		return fmt.Errorf("emulator %s still attached after emu kill", d.serial)
	}
	log.Warnw("Emulator shutdown timeout, killing process", "serial", d.serial)
	return d.kill()
}

func (d *AndroidDevice) interval() time.Duration {
	if d.pollInterval > 0 {
		return d.pollInterval
	}
	return time.Second
}

func execLauncher(name string, args ...string) (func() error, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Kill, nil
}

// FindEmulatorBinary locates the Android emulator binary
func FindEmulatorBinary() (string, error) {
	if androidHome := getAndroidHome(); androidHome != "" {
		for _, p := range []string{
			filepath.Join(androidHome, "emulator", "emulator"),
			filepath.Join(androidHome, "tools", "emulator"),
		} {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	if path, err := exec.LookPath("emulator"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("emulator binary not found. Set ANDROID_HOME or add emulator to PATH")
}

func getAndroidHome() string {
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(env); home != "" {
			return home
		}
	}
	return ""
}
