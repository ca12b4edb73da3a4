// Command cinematch is the CineMatch command-line client. It answers
// recommendation and title-resolution queries against a local catalog or a
// running recommender, and builds and inspects model snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/cinematch/cmd/cinematch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
