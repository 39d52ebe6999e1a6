package main

import "github.com/openmuseum/gallerist/cmd"

func main() {
	cmd.Execute()
}
