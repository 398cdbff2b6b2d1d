package main

import (
	"os"

	"github.com/conneroisu/yamlinc/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
