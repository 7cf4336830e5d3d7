package main

import "github.com/hurou927/relload/cmd"

func main() {
	cmd.Execute()
}
