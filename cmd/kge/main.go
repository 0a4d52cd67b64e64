// Command kge trains knowledge graph embedding models on "head relation
// tail" triple files, keeps the trained runs in a local SQLite store and
// answers link prediction queries against them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
