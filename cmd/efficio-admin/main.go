// Command efficio-admin runs maintenance operations against the efficio
// Redis database.
package main

import (
	"fmt"
	"os"

	"github.com/ghost-in-the-sushi/efficio-webapp/cmd/efficio-admin/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
