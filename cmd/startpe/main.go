// Command startpe is the runner image: the stub that gets a container
// appended to it at pack time and becomes the self-extracting binary the
// end user actually runs. It stays dependency-light on purpose, the same
// way the teacher never pulls a logging framework into its core package.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wrappe/wrappe/extract"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	result, err := extract.Run(context.Background(), args)
	if err != nil {
		if errors.Is(err, extract.ErrNotPacked) {
			fmt.Fprintln(os.Stderr, "startpe: this binary has no packed payload; run it through wrappe first")
			return 1
		}
		fmt.Fprintf(os.Stderr, "startpe: %v\n", err)
		return 1
	}
	if result.Skipped {
		return 0
	}
	return result.ExitCode
}
