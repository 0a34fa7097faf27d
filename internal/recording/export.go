package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var extensions = map[string]string{
	"webm":     ".webm",
	"mp4":      ".mp4",
	"matroska": ".mkv",
}

// Filename returns the download name for an artifact recorded at t, e.g.
// "airchord-2026-10-19T14-03-05.webm".
func Filename(t time.Time, mimeType string) string {
	ext := ".webm"
	if enc, err := resolve(mimeType); err == nil {
		ext = extensions[enc.format]
	}
	return fmt.Sprintf("airchord-%s%s", t.Format("2006-01-02T15-04-05"), ext)
}

// Export writes a to dir under its timestamped name and returns the path.
func Export(a *Artifact, dir string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("export: no artifact")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	path := filepath.Join(dir, Filename(a.CreatedAt, a.MimeType))
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return path, nil
}
