// Command pacekeeper is the terminal front-end to the session engine: quick
// state reads (stats, history, sessions), state writes (energy, medication)
// and a compressed demo of a full focus block.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
