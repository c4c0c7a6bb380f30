package main

import "github.com/tessro/spool/internal/cli"

func main() {
	cli.Execute()
}
