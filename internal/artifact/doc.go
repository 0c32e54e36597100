// Package artifact inspects and enriches the rustdoc output tree between
// build and publish.
//
// Verification is deliberately cheap: existence, a non-empty tree, the crate
// index, and a bounded sample of HTML files whose relative links are resolved
// against the tree. Link problems become warnings, never failures; rustdoc
// output is trusted, the checks exist to catch truncated or misdirected
// builds before they ship.
package artifact
