package main

import "lathe/cmd"

func main() {
	cmd.Execute()
}
