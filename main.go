package main

import "ocrsweep/cmd"

func main() {
	cmd.Execute()
}
