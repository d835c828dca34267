package main

import "github.com/satsuralala/face-detection/internal/cli"

func main() {
	cli.Execute()
}
