// Notegraph - semantic search and link graph for a notes knowledge base.
//
// Notegraph indexes a directory of markdown, org and text notes into a
// knowledge graph of wiki and markdown links and a vector store of embedded
// chunks, and serves both over a CLI and an MCP server.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Benny93/notegraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
