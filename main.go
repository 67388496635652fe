package main

import "github.com/leadpulsehq/leadpulse/cmd"

func main() {
	cmd.Execute()
}
