package main

import "github.com/mcoot/koragame/internal/cli"

func main() {
	cli.Execute()
}
