// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks of the build hot paths, used to
// generate the PGO profile:
//   - config loading and CUE validation
//   - bootstrap execution and snapshot capture
//   - artifact compression at the fast and high levels
//   - a full pipeline run
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
