package main

import "github.com/itrek/trekd/cmd"

func main() {
	cmd.Execute()
}
