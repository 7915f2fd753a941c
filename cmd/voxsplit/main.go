package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Interrupted runs already print their own notice.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "voxsplit: %v\n", err)
	}
	os.Exit(1)
}
