// Command ziphubctl runs admin operations directly against a ZIPHUB data
// directory, without going through the HTTP server.
//
// Stop the server first when using the sqlite or badger backends: both hold
// an exclusive lock on their files.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}
