// Package toolchain shells out to rustup and cargo on behalf of the build
// pipeline.
//
// All subprocess execution goes through the CommandRunner interface. The
// pipeline injects ExecRunner in production; tests inject a scripted runner
// so primary-failure and fallback paths can be exercised without a Rust
// installation on the machine.
package toolchain
