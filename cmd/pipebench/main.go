package main

import "github.com/polarsignals/frostpipe/cmd/pipebench/cmd"

func main() {
	cmd.Execute()
}
