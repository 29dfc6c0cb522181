package main

import (
	"fmt"
	"os"

	"github.com/yourbite/pos-api/internal/cli"
	"github.com/yourbite/pos-api/internal/docstore"
)

func main() {
	if err := cli.NewRootCommand(docstore.Open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
