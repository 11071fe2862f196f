package main

import "github.com/robocourier/control-plane/internal/adapters/cli"

func main() {
	cli.Execute()
}
