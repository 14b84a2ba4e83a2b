// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/helpaudit/helpaudit/cmd/helpaudit"

func main() {
	cmd.Execute()
}
