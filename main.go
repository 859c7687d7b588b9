package main

import "github.com/hurou927/pg-composer/cmd"

func main() {
	cmd.Execute()
}
