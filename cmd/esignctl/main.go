// Command esignctl signs documents from the command line with the same
// providers and settings the Go-ESign service uses.
//
//	esignctl certs
//	esignctl sign --json document.json --root html --out signed/
//	esignctl test-mode toggle
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
