package main

import (
	"github.com/findy-network/findy-vcx/cmd"
)

func main() {
	cmd.Execute()
}
