// Package main is the entry point for the storewatch CLI.
package main

import "github.com/yukselaciker/seyda-matematik-sub001/internal/cli"

func main() {
	cli.Execute()
}
