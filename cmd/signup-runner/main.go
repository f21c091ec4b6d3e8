package main

import "github.com/devicelab-dev/signup-runner/pkg/cli"

func main() {
	cli.Execute()
}
