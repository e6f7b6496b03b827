// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/zfsbe/zfsbe/cmd/zfsbe"

func main() {
	cmd.Execute()
}
