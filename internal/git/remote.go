package git

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	appcfg "git.home.luguber.info/inful/docship/internal/config"
)

// ResolveRemoteHead returns the commit hash a remote branch points at
// without cloning. The scheduler uses this to skip builds when nothing
// changed since the last recorded commit.
func (c *Client) ResolveRemoteHead(url, branch string, authCfg *appcfg.AuthConfig) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &ggitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	listOpts := &git.ListOptions{}
	auth, err := authMethod(authCfg)
	if err != nil {
		return "", err
	}
	listOpts.Auth = auth

	refs, err := remote.List(listOpts)
	if err != nil {
		return "", classifyRemoteError("ls-remote", url, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	var headTarget plumbing.ReferenceName
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			headTarget = ref.Target()
		}
	}

	// No explicit branch configured: follow the remote HEAD.
	if branch == "" && headTarget != "" {
		for _, ref := range refs {
			if ref.Name() == headTarget {
				return ref.Hash().String(), nil
			}
		}
	}

	return "", fmt.Errorf("branch %q not found on %s", branch, url)
}
