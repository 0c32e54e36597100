package git

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/retry"
)

// withRetry wraps an operation with retry logic from the git config section.
func (c *Client) withRetry(op, project string, fn func() (string, error)) (string, error) {
	if c.gitCfg == nil || c.gitCfg.MaxRetries <= 0 {
		return fn()
	}
	pol := retry.NewPolicy(c.gitCfg.RetryBackoff, c.gitCfg.InitialDelay(), c.gitCfg.MaxDelay(), c.gitCfg.MaxRetries)

	// Rate limits get a stretched delay; plain timeouts use the policy as-is.
	const multRateLimit = 3.0

	var lastErr error
	for attempt := 0; attempt <= c.gitCfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying git operation",
				slog.String("operation", op), logfields.Project(project), slog.Int("attempt", attempt))
		}
		c.inRetry = true
		out, err := fn()
		c.inRetry = false
		if err == nil {
			return out, nil
		}
		lastErr = err
		if isPermanentGitError(err) {
			slog.Error("Permanent git error",
				slog.String("operation", op), logfields.Project(project), logfields.Error(err))
			return "", err
		}
		if attempt == c.gitCfg.MaxRetries {
			break
		}
		delay := pol.Delay(attempt + 1)
		if errors.As(err, new(*RateLimitError)) {
			delay = time.Duration(float64(delay) * multRateLimit)
		}
		time.Sleep(delay)
	}
	return "", fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}

func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.As(err, new(*AuthError)) || errors.As(err, new(*NotFoundError)) ||
		errors.As(err, new(*RemoteDivergedError)) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return true
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no such remote") || strings.Contains(msg, "invalid reference") {
		return true
	}
	if strings.Contains(msg, "unsupported protocol") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// expose IsPermanentGitError for tests within package.
var IsPermanentGitError = isPermanentGitError
