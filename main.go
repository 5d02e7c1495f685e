package main

import "github.com/duckgeunpark/IWT/cmd"

func main() {
	cmd.Execute()
}
