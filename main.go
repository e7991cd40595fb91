// The main package for the revere-logs executable.
package main

import (
	"github.com/JakeFAU/revere-police-logs/cmd"
)

func main() {
	cmd.Execute()
}
