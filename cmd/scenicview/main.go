package main

import "github.com/bryanchriswhite/scenicview/cmd/scenicview/commands"

func main() {
	commands.Execute()
}
