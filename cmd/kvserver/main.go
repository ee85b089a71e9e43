// Command kvserver runs the key-value service.
package main

import (
	"fmt"
	"os"

	"github.com/andy-yx-chen/leveldb-win/cmd/kvserver/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
