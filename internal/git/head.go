package git

import (
	"os"
	"path/filepath"
	"strings"
)

// ReadRepoHead returns the current HEAD commit hash of a checkout by reading
// .git/HEAD directly, without opening the repository. Cheap enough for the
// admin status endpoint to call per request.
func ReadRepoHead(repoPath string) (string, error) {
	headPath := filepath.Join(repoPath, ".git", "HEAD")
	data, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(data))

	// Symbolic ref (e.g. "ref: refs/heads/master") resolves through the ref file.
	if strings.HasPrefix(line, "ref:") {
		ref := strings.TrimSpace(strings.TrimPrefix(line, "ref:"))
		refPath := filepath.Join(repoPath, ".git", filepath.FromSlash(ref))
		if refData, refErr := os.ReadFile(refPath); refErr == nil {
			return strings.TrimSpace(string(refData)), nil
		}
	}

	return line, nil
}
