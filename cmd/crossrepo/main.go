package main

import (
	"github.com/crossrepo/crossrepo/cmd/crossrepo/cmd"
)

func main() {
	cmd.Execute()
}
