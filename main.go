package main

import "github.com/ralphcli/ralph/cmd"

func main() {
	cmd.Execute()
}
