package main

import "github.com/jengzang/mvtypes-go/cmd/mvtypes/cmd"

func main() {
	cmd.Execute()
}
