package main

import "nickel-watch/internal/cli"

func main() {
	cli.Execute()
}
