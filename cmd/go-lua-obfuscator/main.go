/*
Lua Obfuscator Tool (Entry Point)

This tool parses Lua source files, applies the configured obfuscation
passes over their syntax trees, and prints the transformed source.
*/
package main

import (
	"github.com/whit3rabbit/luamixer/cmd/go-lua-obfuscator/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
