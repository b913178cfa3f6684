// SPDX-License-Identifier: Apache-2.0

// Command keyrecon reconciles persisted documents with their benchmark.
package main

import (
	"os"

	"github.com/sam-fredrickson/keyrecon/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:]))
}
