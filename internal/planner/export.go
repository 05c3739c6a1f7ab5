package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportFileName is the default name for a plan saved at t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("todo_plan_%s.md", t.Format("20060102_150405"))
}

// SnapshotFileName is the default name for a YAML snapshot taken at t.
func SnapshotFileName(t time.Time) string {
	return fmt.Sprintf("todo_plan_%s.yaml", t.Format("20060102_150405"))
}

// Document is the markdown to export for s: the final output when the
// session has finished, otherwise the plan as it currently stands.
func Document(s State) string {
	if s.Finished() && s.Output != "" {
		return s.Output
	}
	if s.Context == nil {
		return ""
	}
	return FinalDocument(s.Context)
}

// Export writes s's document to path, or to dir/ExportFileName(now) when
// path is empty. It returns the path written.
func Export(s State, path, dir string, now time.Time) (string, error) {
	doc := Document(s)
	if doc == "" {
		return "", fmt.Errorf("session %s has nothing to export", s.SessionID)
	}
	if path == "" {
		path = filepath.Join(orDot(dir), ExportFileName(now))
	}
	return path, writeExport(path, []byte(doc))
}

// ExportYAML writes the full session, graph state and context store with
// its history, as YAML. The default file name is SnapshotFileName(now).
func ExportYAML(s State, path, dir string, now time.Time) (string, error) {
	data, err := yaml.Marshal(newRecord(s))
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if path == "" {
		path = filepath.Join(orDot(dir), SnapshotFileName(now))
	}
	return path, writeExport(path, data)
}

func writeExport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func orDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
