package main

import (
	"fmt"
	"os"

	"github.com/Riley94/multi-cloud-manager/cmd/cloudctl/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
