package main

import "github.com/kozaktomas/emotion-check/cmd"

func main() {
	cmd.Execute()
}
