package main

import (
	"fmt"
	"os"

	"github.com/vchigne/sage/cmd/sagectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
