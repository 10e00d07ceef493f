package main

import "mdm/cmd"

func main() {
	cmd.Execute()
}
