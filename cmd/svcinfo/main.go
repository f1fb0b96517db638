// Command svcinfo resolves a single DNS-SD service instance on the local
// link and prints its host, port, addresses and TXT attributes.
//
//	svcinfo resolve "Office Printer" --type _ipp._tcp.local.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "svcinfo:", err)
		os.Exit(1)
	}
}
