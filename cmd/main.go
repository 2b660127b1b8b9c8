package main

import "github.com/fathima-sithara/media-service/internal/cli"

func main() {
	cli.Execute()
}
