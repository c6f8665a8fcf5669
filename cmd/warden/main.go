// Command warden is the Warden authentication/authorization framework's
// command-line entry point: configuration validation, password hashing,
// and a provider-wiring demo. It is not a server; Warden ships no network
// transport of its own (spec.md §1 Non-goals).
package main

import "github.com/wardenauth/warden/cmd/warden/cmd"

func main() {
	cmd.Execute()
}
