package main

import "provisioner/cmd"

func main() {
	cmd.Execute()
}
