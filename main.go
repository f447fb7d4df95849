package main

import (
	"errors"
	"fmt"
	"os"

	_ "grid-keeper/cmd"
	"grid-keeper/cmd/root"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *root.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
