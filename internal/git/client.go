package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	appcfg "git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// Client handles Git operations for source checkouts and pages deploys.
type Client struct {
	gitCfg  *appcfg.GitConfig // retry tuning; nil disables retries
	inRetry bool              // internal guard to avoid nested retry wrapping
}

// NewClient creates a Git client. gitCfg may be nil, which disables retries.
func NewClient(gitCfg *appcfg.GitConfig) *Client {
	return &Client{gitCfg: gitCfg}
}

// Checkout ensures dir holds an up-to-date clone of the project source at
// its configured branch and returns the resolved head commit hash. The
// first build clones; later builds fetch and hard-reset to the remote head.
func (c *Client) Checkout(ctx context.Context, project *appcfg.ProjectConfig, dir string) (string, error) {
	if c.inRetry {
		return c.checkoutOnce(ctx, project, dir)
	}
	return c.withRetry("checkout", project.Name, func() (string, error) {
		return c.checkoutOnce(ctx, project, dir)
	})
}

func (c *Client) checkoutOnce(ctx context.Context, project *appcfg.ProjectConfig, dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return c.cloneSource(ctx, project, dir)
	}
	return c.updateSource(ctx, project, dir)
}

func (c *Client) cloneSource(ctx context.Context, project *appcfg.ProjectConfig, dir string) (string, error) {
	src := project.Source
	slog.Debug("Cloning source repository",
		logfields.Project(project.Name), logfields.URL(src.URL), logfields.Branch(src.Branch), logfields.Path(dir))

	// A half-finished previous clone would confuse PlainClone.
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to remove stale checkout: %w", err)
	}

	opts := &git.CloneOptions{URL: src.URL}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}
	auth, err := authMethod(src.Auth)
	if err != nil {
		return "", err
	}
	opts.Auth = auth

	repository, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return "", classifyRemoteError("clone", src.URL, err)
	}

	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolve head after clone: %w", err)
	}
	slog.Info("Source cloned",
		logfields.Project(project.Name), logfields.URL(src.URL), logfields.Commit(shortHash(ref.Hash())), logfields.Path(dir))
	return ref.Hash().String(), nil
}

func (c *Client) updateSource(ctx context.Context, project *appcfg.ProjectConfig, dir string) (string, error) {
	src := project.Source
	repository, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open checkout: %w", err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	auth, err := authMethod(src.Auth)
	if err != nil {
		return "", err
	}
	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
	}
	if err := repository.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", classifyRemoteError("fetch", src.URL, err)
	}

	branch := src.Branch
	if branch == "" {
		branch = resolveDefaultBranch(repository)
	}
	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return "", fmt.Errorf("remote branch %s: %w", branch, err)
	}

	head, herr := repository.Head()
	switch {
	case herr != nil:
		// Detached or broken HEAD in the cache; reset fixes it below.
	case head.Hash() == remoteRef.Hash():
		slog.Info("Source already up to date",
			logfields.Project(project.Name), logfields.Branch(branch), logfields.Commit(shortHash(remoteRef.Hash())))
		return remoteRef.Hash().String(), nil
	default:
		ancestor, aerr := isAncestor(repository, head.Hash(), remoteRef.Hash())
		if aerr != nil {
			slog.Warn("Ancestor check failed", logfields.Project(project.Name), logfields.Error(aerr))
		} else if !ancestor {
			// The checkout is a cache; local divergence only ever comes from
			// a crashed build, so resetting is safe.
			slog.Warn("Checkout diverged from remote, resetting",
				logfields.Project(project.Name), logfields.Branch(branch), logfields.Commit(shortHash(remoteRef.Hash())))
		}
	}

	if err := checkoutBranch(repository, wt, branch); err != nil {
		return "", err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("reset to remote head: %w", err)
	}

	slog.Info("Source updated",
		logfields.Project(project.Name), logfields.Branch(branch), logfields.Commit(shortHash(remoteRef.Hash())))
	return remoteRef.Hash().String(), nil
}

// checkoutBranch ensures the named local branch exists and is checked out.
func checkoutBranch(repository *git.Repository, wt *git.Worktree, branch string) error {
	localRef := plumbing.NewBranchReferenceName(branch)
	if _, err := repository.Reference(localRef, true); err != nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: localRef, Create: true, Force: true}); err != nil {
			return fmt.Errorf("checkout new branch %s: %w", branch, err)
		}
		return nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
		return fmt.Errorf("checkout branch %s: %w", branch, err)
	}
	return nil
}

// resolveDefaultBranch picks the branch to track when none is configured:
// current HEAD branch, then origin/HEAD, then "master".
func resolveDefaultBranch(repository *git.Repository) string {
	if headRef, err := repository.Head(); err == nil && headRef.Name().IsBranch() {
		return headRef.Name().Short()
	}
	if ref, err := repository.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), true); err == nil {
		if target := ref.Target(); target != "" {
			return plumbing.ReferenceName(target).Short()
		}
	}
	return "master"
}

// isAncestor reports whether a is reachable from b by walking parents.
func isAncestor(repository *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repository.CommitObject(h)
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:8]
}
