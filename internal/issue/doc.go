// SPDX-License-Identifier: MPL-2.0

// Package issue carries user-facing failures for snapbuild.
//
// ActionableError pairs an operation with the resource involved and a list of
// remediation hints. The catalog holds longer markdown guidance per failure
// class, rendered for the terminal with glamour.
package issue
