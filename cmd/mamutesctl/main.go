package main

import "github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/cmd"

func main() {
	cmd.Execute()
}
