package main

import "github.com/tianyikillua/dolfinx/cmd"

func main() {
	cmd.Execute()
}
