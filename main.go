package main

import "github.com/ValentinKolb/livelock/cmd"

func main() {
	cmd.Execute()
}
