package main

import "github.com/user/sentinel-adk/cmd"

func main() {
	cmd.Execute()
}
