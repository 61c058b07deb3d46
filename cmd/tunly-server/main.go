// Command tunly-server runs the Tunly gateway.
package main

import "github.com/0xReLogic/Tunly/cmd/tunly-server/cmd"

func main() {
	cmd.Execute()
}
