package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"github.com/ppiankov/persona/internal/model"
)

// Store persists persona documents under a directory as {username}_persona.txt,
// with optional .html and .json sidecars.
type Store struct {
	dir       string
	writeHTML bool
	writeJSON bool
	md        goldmark.Markdown
}

// NewStore creates a store from output configuration
func NewStore(cfg model.OutputConfig) *Store {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	return &Store{
		dir:       dir,
		writeHTML: cfg.WriteHTML,
		writeJSON: cfg.WriteJSON,
		md:        goldmark.New(),
	}
}

// TextPath returns where the text artifact for username is written
func (s *Store) TextPath(username string) string {
	return filepath.Join(s.dir, username+"_persona.txt")
}

// Save writes every enabled artifact and returns the paths written.
// Re-running for the same username replaces the previous files. Artifacts are
// staged to temp files first; on any failure none of them is left in place.
func (s *Store) Save(doc *model.PersonaDocument) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(s.dir, doc.Username+"_persona")
	artifacts := []artifact{{path: base + ".txt", data: []byte(doc.Text)}}

	if s.writeHTML {
		var buf bytes.Buffer
		if err := s.md.Convert([]byte(doc.Text), &buf); err != nil {
			return nil, fmt.Errorf("render HTML: %w", err)
		}
		artifacts = append(artifacts, artifact{path: base + ".html", data: buf.Bytes()})
	}

	if s.writeJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal JSON: %w", err)
		}
		artifacts = append(artifacts, artifact{path: base + ".json", data: data})
	}

	return commitArtifacts(artifacts)
}

type artifact struct {
	path string
	data []byte
	tmp  string
}

// commitArtifacts stages every artifact, then renames them into place.
// A failed rename removes the artifacts already committed in this call.
func commitArtifacts(artifacts []artifact) ([]string, error) {
	cleanup := func() {
		for _, a := range artifacts {
			if a.tmp != "" {
				_ = os.Remove(a.tmp)
			}
		}
	}

	for i := range artifacts {
		tmp, err := stageFile(artifacts[i].path, artifacts[i].data)
		if err != nil {
			cleanup()
			return nil, err
		}
		artifacts[i].tmp = tmp
	}

	paths := make([]string, 0, len(artifacts))
	for i := range artifacts {
		if err := os.Rename(artifacts[i].tmp, artifacts[i].path); err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			cleanup()
			return nil, fmt.Errorf("rename %s: %w", artifacts[i].path, err)
		}
		artifacts[i].tmp = ""
		paths = append(paths, artifacts[i].path)
	}
	return paths, nil
}

// stageFile writes data to a temp file next to path and returns the temp path
func stageFile(path string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".persona-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	return tmpPath, nil
}
