package main

import "github.com/Laisky/sparkboard/cmd"

func main() {
	cmd.Execute()
}
