// Kairo turns natural-language requests into planned tasks and executes
// them against a project workspace.
package main

func main() {
	Execute()
}
