package main

import "github.com/lukamindo/tiktok_live_go/cmd"

func main() {
	cmd.Execute()
}
