package main

import "github.com/hiltio/hilt/cmd"

func main() {
	cmd.Execute()
}
