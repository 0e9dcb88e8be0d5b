package main

import "github.com/erc20-burn-relay/relayer/cmd"

func main() {
	cmd.Execute()
}
