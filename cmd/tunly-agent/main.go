// Command tunly-agent runs the Tunly agent, which connects to a gateway
// and forwards tunneled requests to a local service.
package main

import "github.com/0xReLogic/Tunly/cmd/tunly-agent/cmd"

func main() {
	cmd.Execute()
}
