package main

import "github.com/naka-gawa/commit-board/cmd"

func main() {
	cmd.Execute()
}
