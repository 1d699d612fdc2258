package main

import "github.com/icco/genisynth/cmd"

func main() {
	cmd.Execute()
}
