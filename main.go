package main

import "github.com/harvestlink/bid-engine/cmd"

func main() {
	cmd.Execute()
}
