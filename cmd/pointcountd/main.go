// Command pointcountd serves radius range counts over HTTP and offers tools
// to benchmark the counting algorithms and inspect snapshots.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
