package artifact

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// readmeNames lists the README spellings tried in order.
var readmeNames = []string{"README.md", "README.markdown", "Readme.md", "readme.md"}

const landingShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { max-width: 50rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.5; }
pre { background: #f6f8fa; padding: 0.75rem; overflow-x: auto; }
code { font-size: 0.95em; }
</style>
</head>
<body>
%s%s</body>
</html>
`

// EnsureLandingPage renders the crate README into <artifactDir>/index.html
// when the build produced no root index of its own. It returns true when a
// page was written. A missing README is not an error; the tree simply keeps
// no landing page.
func EnsureLandingPage(artifactDir, checkoutDir, crateName, indexDir string) (bool, error) {
	rootIndex := filepath.Join(artifactDir, "index.html")
	if _, err := os.Stat(rootIndex); err == nil {
		return false, nil
	}

	readme := findReadme(checkoutDir)
	if readme == "" {
		return false, nil
	}
	src, err := os.ReadFile(filepath.Clean(readme))
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryArtifact, "readme read failed").
			WithContext("path", readme).
			Build()
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryArtifact, "readme render failed").
			WithContext("path", readme).
			Build()
	}

	title := crateName
	if title == "" {
		title = "Documentation"
	}
	apiLink := ""
	if indexDir != "" {
		apiLink = fmt.Sprintf("<p><strong><a href=\"%s/index.html\">API documentation</a></strong></p>\n", html.EscapeString(indexDir))
	}
	page := fmt.Sprintf(landingShell, html.EscapeString(title), apiLink, body.String())

	if err := os.WriteFile(rootIndex, []byte(page), 0o644); err != nil { // #nosec G306 -- landing page ships with public docs
		return false, ferrors.WrapError(err, ferrors.CategoryArtifact, "landing page write failed").
			WithContext("path", rootIndex).
			Build()
	}
	slog.Debug("Rendered README landing page", logfields.Path(rootIndex), logfields.File(filepath.Base(readme)))
	return true, nil
}

func findReadme(dir string) string {
	for _, name := range readmeNames {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
