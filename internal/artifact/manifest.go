package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
)

// ManifestName is the inventory file written at the artifact root and
// deployed alongside the docs.
const ManifestName = "manifest.json"

// Manifest inventories the doc tree per top-level entry. It carries no
// timestamps: rebuilding the same commit must produce byte-identical output
// or the unchanged-docs publish skip can never trigger.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	Files         int             `json:"files"`
	TotalBytes    int64           `json:"total_bytes"`
	Entries       []ManifestEntry `json:"entries"`
}

// ManifestEntry describes one immediate child of the artifact root. For
// directories the digest covers relative paths and per-file digests in
// sorted order, so it is stable across filesystems.
type ManifestEntry struct {
	Name   string `json:"name"`
	Dir    bool   `json:"dir,omitempty"`
	Files  int    `json:"files"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// WriteManifest computes the inventory of dir and writes it to
// <dir>/manifest.json. A manifest left by a previous build is excluded from
// its own accounting.
func WriteManifest(dir string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "manifest scan failed").
			WithContext("path", dir).
			Build()
	}

	m := &Manifest{SchemaVersion: 1}
	for _, e := range entries {
		if e.Name() == ManifestName {
			continue
		}
		entry, err := manifestEntry(dir, e)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "manifest digest failed").
				WithContext("entry", e.Name()).
				Build()
		}
		m.Files += entry.Files
		m.TotalBytes += entry.Bytes
		m.Entries = append(m.Entries, entry)
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Name < m.Entries[j].Name })

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "manifest encode failed").Build()
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), append(data, '\n'), 0o644); err != nil { // #nosec G306 -- manifest ships with public docs
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "manifest write failed").
			WithContext("path", dir).
			Build()
	}
	return m, nil
}

func manifestEntry(root string, e os.DirEntry) (ManifestEntry, error) {
	full := filepath.Join(root, e.Name())
	if !e.IsDir() {
		sum, size, err := fileDigest(full)
		if err != nil {
			return ManifestEntry{}, err
		}
		return ManifestEntry{Name: e.Name(), Files: 1, Bytes: size, SHA256: sum}, nil
	}

	entry := ManifestEntry{Name: e.Name(), Dir: true}
	h := sha256.New()
	err := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(full, path)
		if err != nil {
			return err
		}
		sum, size, err := fileDigest(path)
		if err != nil {
			return err
		}
		// WalkDir visits in lexical order, keeping the digest deterministic.
		fmt.Fprintf(h, "%s %s\n", filepath.ToSlash(rel), sum)
		entry.Files++
		entry.Bytes += size
		return nil
	})
	if err != nil {
		return ManifestEntry{}, err
	}
	entry.SHA256 = hex.EncodeToString(h.Sum(nil))
	return entry, nil
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
