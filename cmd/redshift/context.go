package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/ipc"
	"redshift/internal/logging"
	"redshift/internal/store"
	"redshift/internal/syncer"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return *c.socketFlag
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return filepath.Join(os.TempDir(), "redshift.sock")
}

// daemonRunning reports whether the daemon socket accepts connections.
func (c *commandContext) daemonRunning() bool {
	client, err := ipc.Dial(c.socketPath())
	if err != nil {
		return false
	}
	_ = client.Close()
	return true
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `redshift start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

// directEngine builds a one-shot engine over the store for commands that run
// without the daemon. The caller must call the returned closer.
func (c *commandContext) directEngine() (*syncer.Engine, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache store: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	gateway := device.NewGateway(cfg)
	engine := syncer.NewEngine(cfg, st, oneShotProvider{cfg: cfg, gateway: gateway}, gateway, syncer.NoopSink{}, logger)
	return engine, func() { _ = st.Close() }, nil
}

// withStore opens the cache store directly for commands that only need
// database access.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// oneShotProvider queries the bridge once instead of running a monitor.
type oneShotProvider struct {
	cfg     *config.Config
	gateway device.Gateway
}

func (p oneShotProvider) Current() (device.Info, error) {
	timeout := time.Duration(p.cfg.Device.BridgeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := p.gateway.ListDevices(ctx)
	if err != nil {
		if errors.Is(err, device.ErrBridgeUnavailable) {
			return device.Info{}, device.ErrNoDevice
		}
		return device.Info{}, err
	}

	pinned := strings.TrimSpace(p.cfg.Device.DeviceID)
	for _, info := range devices {
		if pinned != "" && !strings.EqualFold(info.UDID, pinned) {
			continue
		}
		if info.Name == "" {
			if name, nameErr := p.gateway.DeviceName(ctx, info.UDID); nameErr == nil {
				info.Name = name
			}
		}
		info.Name = device.DisplayName(info, p.cfg.Device.VendorID)
		return info, nil
	}
	return device.Info{}, device.ErrNoDevice
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
