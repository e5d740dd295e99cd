// Morphir builds Morphir IR from project sources and generates code from it.
package main

import "github.com/albertocavalcante/morphir-make/cmd/morphir/internal/cli"

func main() {
	cli.Execute()
}
