// Command routinectl inspects schedule documents offline: it validates them,
// lists due dates, counts dueness and replays a completion history without a
// running server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
