package main

import "github.com/vorion/trustgate/internal/cli"

func main() {
	cli.Execute()
}
