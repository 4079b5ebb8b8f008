package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sys/unix"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/store"
)

// TransferStrategy moves one planned file toward the device. The returned
// status records how far the file got: completed for verified placement,
// pending for staged manual transfers.
type TransferStrategy interface {
	Name() string
	Preflight(ctx context.Context, plan *Plan) error
	Transfer(ctx context.Context, item PlanItem) (store.Status, error)
	RemoveOrphan(ctx context.Context, remotePath string) error
}

// StrategyFor returns the strategy for the configured transfer method.
func StrategyFor(cfg *config.Config, gateway device.Gateway, udid string) (TransferStrategy, error) {
	switch cfg.Sync.TransferMethod {
	case config.TransferMethodDirect:
		return &directPush{cfg: cfg, gateway: gateway, udid: udid}, nil
	case config.TransferMethodSandbox:
		return &sandboxCopy{cfg: cfg, gateway: gateway, udid: udid}, nil
	case config.TransferMethodManual:
		return &manualAssist{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown transfer method %q", cfg.Sync.TransferMethod)
	}
}

// directPush writes straight into the device's media directory through the
// bridge.
type directPush struct {
	cfg     *config.Config
	gateway device.Gateway
	udid    string
}

func (s *directPush) Name() string { return config.TransferMethodDirect }

func (s *directPush) Preflight(ctx context.Context, plan *Plan) error {
	return checkMountFreeSpace(s.cfg, plan.TotalBytes)
}

func (s *directPush) Transfer(ctx context.Context, item PlanItem) (store.Status, error) {
	local := filepath.Join(s.cfg.Paths.LibraryDir, filepath.FromSlash(item.Path))
	remote := path.Join(s.cfg.Device.MediaDir, item.Path)
	if err := s.gateway.Push(ctx, s.udid, local, remote); err != nil {
		return "", err
	}
	return store.StatusCompleted, nil
}

func (s *directPush) RemoveOrphan(ctx context.Context, remotePath string) error {
	return s.gateway.Remove(ctx, s.udid, path.Join(s.cfg.Device.MediaDir, remotePath))
}

// sandboxCopy places files in an app sandbox directory instead of the media
// library, for devices that only expose per-app storage.
type sandboxCopy struct {
	cfg     *config.Config
	gateway device.Gateway
	udid    string
}

func (s *sandboxCopy) Name() string { return config.TransferMethodSandbox }

func (s *sandboxCopy) Preflight(ctx context.Context, plan *Plan) error {
	return checkMountFreeSpace(s.cfg, plan.TotalBytes)
}

func (s *sandboxCopy) Transfer(ctx context.Context, item PlanItem) (store.Status, error) {
	local := filepath.Join(s.cfg.Paths.LibraryDir, filepath.FromSlash(item.Path))
	remote := path.Join(s.cfg.Device.SandboxDir, item.Path)
	if err := s.gateway.PushSandbox(ctx, s.udid, local, remote); err != nil {
		return "", err
	}
	return store.StatusCompleted, nil
}

func (s *sandboxCopy) RemoveOrphan(ctx context.Context, remotePath string) error {
	return s.gateway.Remove(ctx, s.udid, path.Join(s.cfg.Device.SandboxDir, remotePath))
}

// manualAssist stages files in the local outbox directory for the user to
// finish with their own tooling. Transfers commit as pending and are
// promoted once the user confirms them.
type manualAssist struct {
	cfg *config.Config
}

func (s *manualAssist) Name() string { return config.TransferMethodManual }

func (s *manualAssist) Preflight(ctx context.Context, plan *Plan) error {
	return os.MkdirAll(s.cfg.Paths.OutboxDir, 0o755)
}

func (s *manualAssist) Transfer(ctx context.Context, item PlanItem) (store.Status, error) {
	source := filepath.Join(s.cfg.Paths.LibraryDir, filepath.FromSlash(item.Path))
	target := filepath.Join(s.cfg.Paths.OutboxDir, filepath.FromSlash(item.Path))
	if err := copyFile(source, target, item.Hash); err != nil {
		return "", err
	}
	return store.StatusPending, nil
}

func (s *manualAssist) RemoveOrphan(ctx context.Context, remotePath string) error {
	// The device is not reachable in manual mode; orphans stay until the
	// user removes them.
	return nil
}

// copyFile stages source at target via a .partial rename. The copy is
// hashed in flight and must match wantHash before the rename; an empty
// wantHash skips verification for files the planner could not hash.
func copyFile(source, target, wantHash string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create outbox directory: %w", err)
	}
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp := target + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy to outbox: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close staged file: %w", err)
	}
	if wantHash != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != wantHash {
			_ = os.Remove(tmp)
			return fmt.Errorf("staged copy of %q hashed %s, want %s", source, got, wantHash)
		}
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize staged file: %w", err)
	}
	return nil
}

// checkMountFreeSpace verifies the device mount has room for the planned
// bytes plus the configured reserve. Skipped when no mount is visible since
// the bridge reports its own space errors.
func checkMountFreeSpace(cfg *config.Config, planned int64) error {
	mountDir := cfg.Device.MountDir
	if mountDir == "" {
		return nil
	}
	if _, err := os.Stat(mountDir); err != nil {
		return nil
	}
	var fsStat unix.Statfs_t
	if err := unix.Statfs(mountDir, &fsStat); err != nil {
		return nil
	}
	available := int64(fsStat.Bavail) * fsStat.Bsize
	reserve := int64(cfg.Device.MinFreeSpaceMiB) * 1024 * 1024
	if available < planned+reserve {
		return fmt.Errorf("insufficient space on device: %d bytes available, %d planned plus %d reserved",
			available, planned, reserve)
	}
	return nil
}
