package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

// Syncer brings the local checkout of the source repository up to date.
type Syncer interface {
	Sync(ctx context.Context) error
}

type GitSyncer struct {
	repoURL   string
	localPath string
	timeout   time.Duration
	log       *logger.Logger
}

func NewGitSyncer(cfg Config, log *logger.Logger) *GitSyncer {
	return &GitSyncer{
		repoURL:   cfg.RepoURL,
		localPath: cfg.LocalPath,
		timeout:   cfg.GitTimeout,
		log:       log.With("component", "GitSyncer"),
	}
}

// Sync clones with depth 1 when no checkout exists, otherwise pulls.
func (g *GitSyncer) Sync(ctx context.Context) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := os.Stat(filepath.Join(g.localPath, ".git"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(filepath.Clean(g.localPath)), 0o755); err != nil {
			return fmt.Errorf("create parent of %s: %w", g.localPath, err)
		}
		g.log.Info("Cloning repository", "repo_url", maskURL(g.repoURL), "path", g.localPath)
		if err := g.run(ctx, "", "clone", "--depth", "1", g.repoURL, g.localPath); err != nil {
			return err
		}
		g.log.Info("Clone completed", "duration", time.Since(start))
	case err != nil:
		return fmt.Errorf("stat checkout: %w", err)
	default:
		g.log.Info("Pulling latest changes", "path", g.localPath)
		if err := g.run(ctx, g.localPath, "pull", "--ff-only"); err != nil {
			return err
		}
		g.log.Info("Pull completed", "duration", time.Since(start))
	}
	return nil
}

func (g *GitSyncer) run(ctx context.Context, dir string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s failed: %w: %s", args[0], err, maskURL(stderr.String()))
	}
	return nil
}

var reURLCredentials = regexp.MustCompile(`(https?://)[^@/\s]+@`)

// maskURL hides credentials embedded in clone URLs.
func maskURL(s string) string {
	return reURLCredentials.ReplaceAllString(s, "${1}[REDACTED]@")
}
