package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
)

// VerifyResult summarizes a doc tree that passed verification.
type VerifyResult struct {
	Files      int
	TotalBytes int64
	// Warnings lists link problems found in the sampled HTML files.
	Warnings []string
}

// Verify checks that dir holds a publishable doc tree: it exists, contains
// files, and includes the crate index at <indexDir>/index.html. An empty
// indexDir skips the index check (projects without a resolvable crate name).
func Verify(dir, indexDir string) (*VerifyResult, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ferrors.ArtifactError("doc tree missing").
			WithContext("path", dir).
			Build()
	}

	res := &VerifyResult{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		res.Files++
		res.TotalBytes += fi.Size()
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryArtifact, "doc tree walk failed").
			WithContext("path", dir).
			Build()
	}
	if res.Files == 0 {
		return nil, ferrors.ArtifactError("doc tree is empty").
			WithContext("path", dir).
			Build()
	}

	if indexDir != "" {
		index := filepath.Join(dir, indexDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			return nil, ferrors.ArtifactError("crate index missing from doc tree").
				WithContext("expected", filepath.Join(indexDir, "index.html")).
				WithContext("path", dir).
				Build()
		}
	}

	warnings, err := checkLinks(dir)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("link check aborted: %v", err))
	}
	res.Warnings = warnings
	return res, nil
}
