package main

import "crmsync/cmd/syncctl/cmd"

func main() {
	cmd.Execute()
}
