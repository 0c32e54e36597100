package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	appcfg "git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// PublishRequest describes one deploy of a built documentation tree.
type PublishRequest struct {
	Project     string
	Commit      string // source commit the docs were built from
	Toolchain   string // toolchain that produced the docs
	ArtifactDir string // generated doc tree
	PagesDir    string // working dir for the pages clone (reused if it already holds one)
	Publish     *appcfg.PublishConfig
}

// PublishResult reports what a deploy did.
type PublishResult struct {
	Skipped    bool   // tree identical, nothing committed
	CommitHash string // deploy commit, empty when skipped
}

// Publish deploys the artifact tree into <target_dir>/<project> of the pages
// repository branch: clone (or reuse) the branch, replace the target folder,
// commit, push. Content-identical deploys are skipped without committing. A
// push rejected as non-fast-forward is retried once against the refreshed
// remote head before giving up.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.Publish == nil || req.Publish.Repository == "" {
		return nil, fmt.Errorf("publish repository not configured")
	}
	cfg := req.Publish
	auth := tokenAuth(cfg.Token)

	repository, err := c.preparePages(ctx, req, auth)
	if err != nil {
		return nil, err
	}

	result, err := c.stageAndPush(ctx, repository, req, auth)
	if err == nil || !isNonFastForward(err) {
		return result, err
	}

	// Someone pushed between our clone and our push. Refresh and replay once.
	slog.Warn("Pages push rejected, refreshing and replaying",
		logfields.Project(req.Project), logfields.Repository(cfg.Repository), logfields.Branch(cfg.Branch))
	if rerr := c.refreshPages(ctx, repository, cfg, auth); rerr != nil {
		return nil, rerr
	}
	result, err = c.stageAndPush(ctx, repository, req, auth)
	if err != nil && isNonFastForward(err) {
		return nil, &RemoteDivergedError{Op: "publish", URL: cfg.Repository, Branch: cfg.Branch, Err: err}
	}
	return result, err
}

// preparePages makes req.PagesDir hold a checkout of the pages branch. An
// existing clone is reused; a missing branch or an entirely empty repository
// yields a fresh local branch that the push will create remotely.
func (c *Client) preparePages(ctx context.Context, req PublishRequest, auth transport.AuthMethod) (*git.Repository, error) {
	cfg := req.Publish

	if _, err := os.Stat(filepath.Join(req.PagesDir, ".git")); err == nil {
		repository, oerr := git.PlainOpen(req.PagesDir)
		if oerr != nil {
			return nil, fmt.Errorf("open pages clone: %w", oerr)
		}
		return repository, nil
	}

	slog.Debug("Cloning pages repository",
		logfields.Project(req.Project), logfields.Repository(cfg.Repository), logfields.Branch(cfg.Branch))
	repository, err := git.PlainCloneContext(ctx, req.PagesDir, false, &git.CloneOptions{
		URL:           cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err == nil {
		return repository, nil
	}

	if isMissingBranchOrEmptyRepo(err) {
		return c.initPages(req.PagesDir, cfg)
	}
	return nil, classifyRemoteError("clone", cfg.Repository, err)
}

// initPages starts a fresh local repository on the pages branch for remotes
// that are empty or lack the branch; the first push creates it remotely.
func (c *Client) initPages(dir string, cfg *appcfg.PublishConfig) (*git.Repository, error) {
	slog.Info("Pages branch missing on remote, starting a fresh one",
		logfields.Repository(cfg.Repository), logfields.Branch(cfg.Branch))

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear pages dir: %w", err)
	}
	repository, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init pages repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(cfg.Branch))
	if err := repository.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set pages branch: %w", err)
	}
	if _, err := repository.CreateRemote(&ggitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{cfg.Repository},
	}); err != nil {
		return nil, fmt.Errorf("add pages remote: %w", err)
	}
	return repository, nil
}

// refreshPages discards local pages state and resets onto the current remote
// branch head, for the non-fast-forward replay.
func (c *Client) refreshPages(ctx context.Context, repository *git.Repository, cfg *appcfg.PublishConfig, auth transport.AuthMethod) error {
	refspec := ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", cfg.Branch, cfg.Branch))
	err := repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{refspec},
		Tags:       git.NoTags,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyRemoteError("fetch", cfg.Repository, err)
	}

	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", cfg.Branch), true)
	if err != nil {
		return fmt.Errorf("remote pages branch %s: %w", cfg.Branch, err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("pages worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("reset pages to remote head: %w", err)
	}
	return nil
}

// stageAndPush replaces the target folder with the artifact tree, commits if
// anything changed, and pushes the pages branch.
func (c *Client) stageAndPush(ctx context.Context, repository *git.Repository, req PublishRequest, auth transport.AuthMethod) (*PublishResult, error) {
	cfg := req.Publish

	wt, err := repository.Worktree()
	if err != nil {
		return nil, fmt.Errorf("pages worktree: %w", err)
	}

	if err := c.replaceTarget(req); err != nil {
		return nil, err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("stage pages changes: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("pages status: %w", err)
	}
	if status.IsClean() {
		slog.Info("Docs unchanged, skipping publish",
			logfields.Project(req.Project), logfields.Repository(cfg.Repository))
		return &PublishResult{Skipped: true}, nil
	}

	commit, err := wt.Commit(commitMessage(req), &git.CommitOptions{
		Author: &object.Signature{
			Name:  cfg.Author.Name,
			Email: cfg.Author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("commit pages changes: %w", err)
	}

	refspec := ggitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", cfg.Branch, cfg.Branch))
	err = repository.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{refspec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if isNonFastForward(err) {
			return nil, err
		}
		return nil, classifyRemoteError("push", cfg.Repository, err)
	}

	slog.Info("Docs published",
		logfields.Project(req.Project), logfields.Repository(cfg.Repository), logfields.Branch(cfg.Branch),
		logfields.Commit(shortHash(commit)))
	return &PublishResult{CommitHash: commit.String()}, nil
}

// replaceTarget swaps <pages>/<target_dir>/<project> for the artifact tree.
func (c *Client) replaceTarget(req PublishRequest) error {
	dest := filepath.Join(req.PagesDir, filepath.FromSlash(req.Publish.TargetDir), req.Project)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear publish target: %w", err)
	}
	if err := os.CopyFS(dest, os.DirFS(req.ArtifactDir)); err != nil {
		return fmt.Errorf("failed to copy artifact tree: %w", err)
	}
	return nil
}

func commitMessage(req PublishRequest) string {
	if req.Publish.CommitMessage != "" {
		return req.Publish.CommitMessage
	}
	commit := req.Commit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("docs: %s @ %s (%s)", req.Project, commit, req.Toolchain)
}

// isMissingBranchOrEmptyRepo matches the clone failures that mean "nothing
// to clone yet" rather than a real error.
func isMissingBranchOrEmptyRepo(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return true
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "reference not found") || strings.Contains(l, "couldn't find remote ref")
}
