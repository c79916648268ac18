package main

import "github.com/brogergvhs/comickd/cmd"

func main() {
	cmd.Execute()
}
