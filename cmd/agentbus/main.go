package main

import "github.com/ppiankov/agentbus/internal/cli"

func main() {
	cli.Execute()
}
