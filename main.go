package main

import "osnma/cmd"

func main() {
	cmd.Execute()
}
