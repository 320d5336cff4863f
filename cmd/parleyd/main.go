package main

import "github.com/parleychat/parley/cmd/parleyd/cmd"

func main() {
	cmd.Execute()
}
