package main

import "github.com/frahmantamala/task-dashboard/cmd"

func main() {
	cmd.Execute()
}
