package main

import "github.com/evmkit/node-provider/cmd"

func main() {
	cmd.Execute()
}
