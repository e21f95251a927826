package main

import "sjsage522/hotdealmatcher/cmd"

func main() {
	cmd.Execute()
}
