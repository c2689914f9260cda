package main

import "chatterbox-backend/cmd"

func main() {
	cmd.Run()
}
