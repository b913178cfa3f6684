// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/sam-fredrickson/keyrecon/logging"
)

func main() {
	// KRM function: read a ResourceList from stdin, write it to stdout
	log := logging.Default()
	if err := Run(os.Stdin, os.Stdout, *log); err != nil {
		log.Error().Err(err).Msg("keyrecon-krm failed")
		os.Exit(1)
	}
}
