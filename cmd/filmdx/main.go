package main

import "github.com/MeKo-Tech/filmdx/cmd/filmdx/cmd"

func main() {
	cmd.Execute()
}
