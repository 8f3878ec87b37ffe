// Command craftdroid migrates Android GUI tests between similar apps.
package main

import "github.com/seal-hub/CraftDroid/pkg/cli"

func main() {
	cli.Execute()
}
