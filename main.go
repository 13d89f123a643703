package main

import "github.com/Blitzliner/aminos/cmd"

func main() {
	cmd.Execute()
}
