package main

import "github.com/atikulmunna/logbook/internal/cmd"

func main() {
	cmd.Execute()
}
