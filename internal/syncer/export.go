package syncer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// Manifest is a portable description of a transfer plan, written so other
// tooling (or the user, in manual mode) can see exactly what a sync would
// move.
type Manifest struct {
	GeneratedAt time.Time  `json:"generated_at"`
	DeviceID    string     `json:"device_id"`
	Method      string     `json:"method"`
	TotalBytes  int64      `json:"total_bytes"`
	Items       []PlanItem `json:"items"`
	Orphans     []string   `json:"orphans,omitempty"`
}

// ExportManifest writes the plan as a JSON manifest. Paths ending in .gz are
// compressed.
func ExportManifest(path string, plan *Plan, method string) error {
	manifest := Manifest{
		GeneratedAt: time.Now().UTC(),
		DeviceID:    plan.DeviceID,
		Method:      method,
		TotalBytes:  plan.TotalBytes,
		Items:       plan.Transfers,
		Orphans:     plan.Orphans,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer file.Close()

	var sink io.Writer = file
	var gz *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = pgzip.NewWriter(file)
		sink = gz
	}

	encoder := json.NewEncoder(sink)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finish manifest compression: %w", err)
		}
	}
	return file.Close()
}

// ReadManifest loads a manifest written by ExportManifest.
func ReadManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var source io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open manifest compression: %w", err)
		}
		defer gz.Close()
		source = gz
	}

	var manifest Manifest
	if err := json.NewDecoder(source).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}
