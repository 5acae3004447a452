package main

import "github.com/ramiqadoumi/go-pricing-agents/services/agents/cli"

func main() {
	cli.Execute()
}
