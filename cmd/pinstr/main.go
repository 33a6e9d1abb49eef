// Command pinstr is a relay-network bookmark client with a passphrase-derived
// private vault.
package main

import (
	"os"

	"github.com/zeroxbob/pinstr/cmd/pinstr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
