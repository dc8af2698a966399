package main

import "github.com/astralume/astra/cmd/astra/cmd"

func main() {
	cmd.Execute()
}
