package main

import "adspace-cli/cmd"

func main() {
	cmd.Execute()
}
