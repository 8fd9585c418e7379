package main

import "github.com/ppiankov/termwatch/internal/cli"

func main() {
	cli.Execute()
}
