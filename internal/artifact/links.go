package artifact

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docship/internal/util/sets"
)

const (
	// linkSampleFiles caps how many HTML files one verification parses.
	// Rustdoc emits one page per item; large crates have tens of thousands.
	linkSampleFiles = 40
	// maxLinkWarnings caps the warning list per build.
	maxLinkWarnings = 25
)

// checkLinks parses a bounded sample of HTML files under root and reports
// relative links that escape the tree or point at missing files.
func checkLinks(root string) ([]string, error) {
	var pages []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		pages = append(pages, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(pages)
	if len(pages) > linkSampleFiles {
		pages = pages[:linkSampleFiles]
	}

	var warnings []string
	seen := sets.New[string]()
	truncated := false
	for _, page := range pages {
		refs, err := pageRefs(page)
		if err != nil {
			rel, _ := filepath.Rel(root, page)
			warnings = append(warnings, fmt.Sprintf("%s: unparseable HTML: %v", rel, err))
			continue
		}
		for _, ref := range refs {
			warn, target := resolveRef(root, page, ref)
			if warn == "" || seen.Has(target) {
				continue
			}
			seen.Add(target)
			if len(warnings) >= maxLinkWarnings {
				truncated = true
				break
			}
			warnings = append(warnings, warn)
		}
		if truncated {
			break
		}
	}
	if truncated {
		warnings = append(warnings, "further link warnings suppressed")
	}
	return warnings, nil
}

// resolveRef classifies one link target. It returns a warning message (empty
// when the link is fine or out of scope) and the deduplication key.
func resolveRef(root, page, ref string) (string, string) {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", ""
	}
	// Root-absolute paths depend on where the tree is mounted; out of scope.
	if strings.HasPrefix(u.Path, "/") || u.Path == "" {
		return "", ""
	}

	resolved := filepath.Join(filepath.Dir(page), filepath.FromSlash(u.Path))
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		pageRel, _ := filepath.Rel(root, page)
		return fmt.Sprintf("%s: link %q escapes the doc tree", pageRel, ref), "outside:" + ref
	}
	if _, err := os.Stat(resolved); err != nil {
		pageRel, _ := filepath.Rel(root, page)
		return fmt.Sprintf("%s: link %q points at a missing file", pageRel, ref), rel
	}
	return "", ""
}

// pageRefs extracts href/src values from one HTML file.
func pageRefs(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "link":
				if v := attr(n, "href"); v != "" {
					refs = append(refs, v)
				}
			case "img", "script":
				if v := attr(n, "src"); v != "" {
					refs = append(refs, v)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
