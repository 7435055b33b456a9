package main

import "github.com/MeKo-Tech/pano/cmd/pano/cmd"

func main() {
	cmd.Execute()
}
