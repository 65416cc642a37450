package main

import "github.com/surge-downloader/coursedl/cmd"

func main() {
	cmd.Execute()
}
