// Command mathdoc is the CLI entry point for the pipeline, the
// spf13/cobra-based successor to the teacher's lang/cmd/cow-lang/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/shadowCow/mathdoc/cli"
)

func main() {
	root := cli.NewRootCommand(cli.Config{Output: os.Stdout})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
