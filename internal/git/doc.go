// Package git wraps the go-git operations DocShip needs: keeping a
// per-project source checkout current, probing remote heads, and deploying
// built documentation trees to a pages repository.
//
// This package handles:
//   - Checkout: clone on first build, fetch + hard reset to the remote head
//     afterwards (the checkout is a build cache, never authored locally)
//   - Publish: replace a target folder in the pages branch, commit, push
//   - Typed errors for auth, not-found, timeout, rate-limit, and divergence
//   - Retry logic with permanent-vs-transient classification
package git
