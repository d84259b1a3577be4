package main

import (
	"os"

	"github.com/unkn0wn-root/imgload/cmd/imgload/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
