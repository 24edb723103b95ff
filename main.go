// SPDX-License-Identifier: MPL-2.0

package main

import cmd "snapbuild/cmd/snapbuild"

func main() {
	cmd.Execute()
}
