// Command tytx decodes, encodes, hydrates and validates typed text, and
// serves the same operations over HTTP.
package main

func main() {
	Execute()
}
