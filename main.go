package main

import "github.com/fixitrock/rockdl/cmd"

func main() {
	cmd.Execute()
}
