package main

import "github.com/jmcleod/keyrelay/cmd/keyrelay/cmd"

func main() {
	cmd.Execute()
}
