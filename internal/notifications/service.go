package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redshift/internal/config"
)

const userAgent = "RedShift-Go/0.1.0"

// Service defines the notification surface exposed to sync components.
type Service interface {
	NotifyDeviceAttached(ctx context.Context, deviceName string) error
	NotifyDeviceDetached(ctx context.Context, deviceName string) error
	NotifyDeviceUnrecognized(ctx context.Context, productID string) error
	NotifySyncStarted(ctx context.Context, deviceName string, queued int) error
	NotifySyncCompleted(ctx context.Context, deviceName string, transferred, failed int, duration time.Duration) error
	NotifySyncFailed(ctx context.Context, deviceName string, err error) error
	NotifyManualStaged(ctx context.Context, staged int, outboxDir string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		cfg:      cfg,
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	cfg      *config.Config
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyDeviceAttached(ctx context.Context, deviceName string) error {
	if !n.cfg.Notifications.Device {
		return nil
	}
	data := payload{
		title:   "RedShift - Device Connected",
		message: fmt.Sprintf("Device connected: %s", fallbackName(deviceName)),
		tags:    []string{"redshift", "device", "attached"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeviceDetached(ctx context.Context, deviceName string) error {
	if !n.cfg.Notifications.Device {
		return nil
	}
	data := payload{
		title:   "RedShift - Device Disconnected",
		message: fmt.Sprintf("Device disconnected: %s", fallbackName(deviceName)),
		tags:    []string{"redshift", "device", "detached"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeviceUnrecognized(ctx context.Context, productID string) error {
	if !n.cfg.Notifications.Device {
		return nil
	}
	data := payload{
		title:   "RedShift - Unrecognized Device",
		message: fmt.Sprintf("Connected device has unrecognized product id %s; sync may still work", productID),
		tags:    []string{"redshift", "device", "unrecognized"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncStarted(ctx context.Context, deviceName string, queued int) error {
	if !n.cfg.Notifications.Sync {
		return nil
	}
	data := payload{
		title:   "RedShift - Sync Started",
		message: fmt.Sprintf("Syncing %d files to %s", queued, fallbackName(deviceName)),
		tags:    []string{"redshift", "sync", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, deviceName string, transferred, failed int, duration time.Duration) error {
	if !n.cfg.Notifications.Sync {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "RedShift - Sync Complete"
		message = fmt.Sprintf("Synced %d files to %s in %s", transferred, fallbackName(deviceName), duration)
	} else {
		title = "RedShift - Sync Complete (with errors)"
		message = fmt.Sprintf("Synced %d files to %s, %d failed, in %s", transferred, fallbackName(deviceName), failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"redshift", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySyncFailed(ctx context.Context, deviceName string, err error) error {
	if !n.cfg.Notifications.Errors {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "RedShift - Sync Failed",
		message:  fmt.Sprintf("Sync to %s failed: %s", fallbackName(deviceName), reason),
		tags:     []string{"redshift", "sync", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyManualStaged(ctx context.Context, staged int, outboxDir string) error {
	if !n.cfg.Notifications.Sync {
		return nil
	}
	data := payload{
		title:   "RedShift - Files Staged",
		message: fmt.Sprintf("%d files staged in %s\nFinish the transfer and run: redshift ledger confirm", staged, outboxDir),
		tags:    []string{"redshift", "sync", "staged"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.cfg.Notifications.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "RedShift - Error",
		message:  builder.String(),
		tags:     []string{"redshift", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "RedShift - Test",
		message:  "Notification system test",
		tags:     []string{"redshift", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func fallbackName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "device"
	}
	return name
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDeviceAttached(context.Context, string) error               { return nil }
func (noopService) NotifyDeviceDetached(context.Context, string) error               { return nil }
func (noopService) NotifyDeviceUnrecognized(context.Context, string) error           { return nil }
func (noopService) NotifySyncStarted(context.Context, string, int) error             { return nil }
func (noopService) NotifySyncCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifySyncFailed(context.Context, string, error) error   { return nil }
func (noopService) NotifyManualStaged(context.Context, int, string) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
