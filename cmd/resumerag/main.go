package main

import "resumerag/internal/cli"

func main() {
	cli.Execute()
}
