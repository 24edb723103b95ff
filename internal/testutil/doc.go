// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixtures shared by package tests: temporary
// project trees with bootstrap scripts, and a fixed revision for builds that
// must not depend on the surrounding repository.
package testutil
