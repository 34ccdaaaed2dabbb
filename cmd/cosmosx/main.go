// Command cosmosx browses and edits attached MongoDB and Azure Cosmos DB
// accounts from the terminal.
package main

import "github.com/mesh-intelligence/cosmosx/internal/cli"

func main() {
	cli.Execute()
}
