package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"redshift/internal/config"
)

// Info describes one attached device as reported by the bridge.
type Info struct {
	UDID      string `json:"udid"`
	Name      string `json:"name"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
}

// RemoteFile is one file on the device as reported by a remote listing.
type RemoteFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Gateway is the capability surface over the attached device. The production
// implementation shells out to the bridge binary; tests substitute fakes.
type Gateway interface {
	ListDevices(ctx context.Context) ([]Info, error)
	DeviceName(ctx context.Context, udid string) (string, error)
	ListFiles(ctx context.Context, udid, dir string) ([]RemoteFile, error)
	Push(ctx context.Context, udid, localPath, remotePath string) error
	PushSandbox(ctx context.Context, udid, localPath, remotePath string) error
	Pull(ctx context.Context, udid, remotePath, localPath string) error
	Remove(ctx context.Context, udid, remotePath string) error
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// bridgeGateway talks to the device through the external bridge binary.
type bridgeGateway struct {
	binary      string
	runner      commandRunner
	timeout     time.Duration
	listTimeout time.Duration
	pushTimeout time.Duration
}

// NewGateway creates the bridge-backed device gateway.
func NewGateway(cfg *config.Config) Gateway {
	return &bridgeGateway{
		binary:      cfg.Device.BridgeBinary,
		runner:      execCommandRunner{},
		timeout:     time.Duration(cfg.Device.BridgeTimeout) * time.Second,
		listTimeout: time.Duration(cfg.Device.BridgeListTimeout) * time.Second,
		pushTimeout: time.Duration(cfg.Device.BridgePushTimeout) * time.Second,
	}
}

func (g *bridgeGateway) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stdout, stderr, err := g.runner.Run(ctx, g.binary, args...)
	if err != nil {
		classified := classifyBridgeError(err, string(stderr))
		if classified == err {
			detail := strings.TrimSpace(string(stderr))
			if detail != "" {
				return nil, fmt.Errorf("%s %s: %w: %s", g.binary, args[0], err, detail)
			}
			return nil, fmt.Errorf("%s %s: %w", g.binary, args[0], err)
		}
		return nil, classified
	}
	return stdout, nil
}

func (g *bridgeGateway) ListDevices(ctx context.Context) ([]Info, error) {
	output, err := g.run(ctx, g.timeout, "list-devices", "--json")
	if err != nil {
		return nil, err
	}
	var devices []Info
	if err := json.Unmarshal(output, &devices); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	for i := range devices {
		devices[i].VendorID = strings.ToLower(strings.TrimSpace(devices[i].VendorID))
		devices[i].ProductID = strings.ToLower(strings.TrimSpace(devices[i].ProductID))
	}
	return devices, nil
}

func (g *bridgeGateway) DeviceName(ctx context.Context, udid string) (string, error) {
	output, err := g.run(ctx, g.timeout, "device-name", "--udid", udid)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func (g *bridgeGateway) ListFiles(ctx context.Context, udid, dir string) ([]RemoteFile, error) {
	output, err := g.run(ctx, g.listTimeout, "list-files", "--json", "--udid", udid, dir)
	if err != nil {
		return nil, err
	}
	var files []RemoteFile
	if err := json.Unmarshal(output, &files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return files, nil
}

func (g *bridgeGateway) Push(ctx context.Context, udid, localPath, remotePath string) error {
	_, err := g.run(ctx, g.pushTimeout, "push", "--udid", udid, localPath, remotePath)
	return err
}

func (g *bridgeGateway) PushSandbox(ctx context.Context, udid, localPath, remotePath string) error {
	_, err := g.run(ctx, g.pushTimeout, "push-sandbox", "--udid", udid, localPath, remotePath)
	return err
}

func (g *bridgeGateway) Pull(ctx context.Context, udid, remotePath, localPath string) error {
	_, err := g.run(ctx, g.pushTimeout, "pull", "--udid", udid, remotePath, localPath)
	return err
}

func (g *bridgeGateway) Remove(ctx context.Context, udid, remotePath string) error {
	_, err := g.run(ctx, g.timeout, "remove", "--udid", udid, remotePath)
	return err
}
