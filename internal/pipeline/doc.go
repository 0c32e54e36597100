// Package pipeline drives one documentation build end to end: checkout,
// toolchain preparation, the primary docs build, the stable fallback when
// the primary fails, artifact verification, and the pages publish.
//
// Stages run in a fixed order. A warning records and continues, a fatal
// error aborts, and a stage may declare itself skipped — the fallback stage
// does exactly that whenever the primary build produced docs, so a
// successful nightly build never touches the stable toolchain. Every run
// yields a RunReport whether it succeeded or not.
package pipeline
