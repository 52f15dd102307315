// Package checker defines the check execution contract and the scan runner.
//
// Architecture overview:
//
//   - A Check exposes a fixed Identity (target type, family, whether it needs
//     an authenticated session, whether it may run on crawled pages) and a
//     Probe function that records findings on a Recorder.
//   - Run wraps one probe execution and turns it into an Outcome: Passed,
//     FailedWithIssues, Cancelled or FatalError. Panics and contract
//     violations become FatalError; a triggered token always wins and
//     becomes Cancelled.
//   - Runner fans the applicable checks of a target out on an errgroup, each
//     under its own dependent cancellation token, and returns a Batch once
//     every check settled.
//   - DiscoverPages performs the bounded same-host link discovery used when
//     every page of a site is scanned.
package checker
