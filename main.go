package main

import "gdrive-backup/cmd"

func main() {
	cmd.Execute()
}
