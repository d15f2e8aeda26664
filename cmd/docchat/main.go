// Command docchat is the entry point for the document-grounded
// conversational assistant. It provides a Cobra CLI for ingestion and
// one-shot questions, and an HTTP server for the chat front end.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/docchat/cmd/docchat/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
