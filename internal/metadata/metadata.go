// Package metadata extracts audio tag metadata for library files, falling
// back to filename-derived values when a file's tags cannot be read.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the parsed tag information stored with each cached library file.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	Genre       string `json:"genre,omitempty"`
	// DurationSeconds, BitrateKbps, and SampleRateHz are best-effort; tag
	// containers rarely carry them and zero means unknown.
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	BitrateKbps     int    `json:"bitrate_kbps,omitempty"`
	SampleRateHz    int    `json:"sample_rate_hz,omitempty"`
	Codec           string `json:"codec,omitempty"`
}

// Extract reads tag metadata from the audio file at path. On any read or
// parse failure it returns the filename-derived fallback alongside the error
// so callers can cache best-effort metadata and keep going.
func Extract(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return FromFilename(path), fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	parsed, err := tag.ReadFrom(file)
	if err != nil {
		return FromFilename(path), fmt.Errorf("read tags %s: %w", path, err)
	}

	meta := Metadata{
		Title:       strings.TrimSpace(parsed.Title()),
		Artist:      strings.TrimSpace(parsed.Artist()),
		Album:       strings.TrimSpace(parsed.Album()),
		AlbumArtist: strings.TrimSpace(parsed.AlbumArtist()),
		Year:        parsed.Year(),
		Genre:       strings.TrimSpace(parsed.Genre()),
		Codec:       codecFor(parsed.FileType(), path),
	}
	if track, _ := parsed.Track(); track > 0 {
		meta.TrackNumber = track
	}

	fallback := FromFilename(path)
	if meta.Title == "" {
		meta.Title = fallback.Title
	}
	if meta.Artist == "" {
		meta.Artist = fallback.Artist
	}
	if meta.TrackNumber == 0 {
		meta.TrackNumber = fallback.TrackNumber
	}
	return meta, nil
}

var trackPrefix = regexp.MustCompile(`^\s*(\d{1,3})\s*[-._)\s]\s*`)

// FromFilename derives placeholder metadata from the file name alone, used
// when tag extraction fails. "07 - Artist - Title.mp3" yields track 7,
// artist "Artist", title "Title"; anything unsplittable becomes the title.
func FromFilename(path string) Metadata {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSpace(strings.TrimSuffix(base, ext))

	meta := Metadata{Codec: codecFromExtension(ext)}

	if match := trackPrefix.FindStringSubmatch(name); match != nil {
		var track int
		fmt.Sscanf(match[1], "%d", &track)
		meta.TrackNumber = track
		name = strings.TrimSpace(name[len(match[0]):])
	}

	if parts := strings.SplitN(name, " - ", 2); len(parts) == 2 {
		meta.Artist = strings.TrimSpace(parts[0])
		meta.Title = strings.TrimSpace(parts[1])
	} else {
		meta.Title = name
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(base, ext)
	}
	return meta
}

func codecFor(fileType tag.FileType, path string) string {
	if fileType != tag.UnknownFileType {
		return strings.ToLower(string(fileType))
	}
	return codecFromExtension(filepath.Ext(path))
}

func codecFromExtension(ext string) string {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch normalized {
	case "m4a", "m4p":
		return "aac"
	case "":
		return "unknown"
	default:
		return normalized
	}
}
