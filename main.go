package main

import "github.com/caedis/modengine/cmd"

func main() {
	cmd.Execute()
}
