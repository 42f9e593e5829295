package main

import "github.com/autosched/fieldtrack/cmd"

func main() {
	cmd.Execute()
}
