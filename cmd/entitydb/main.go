// Command entitydb is a small CLI client over the versioned entity
// engine: one replica per invocation, reading and persisting its
// branch through a storage adapter selected by config.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
