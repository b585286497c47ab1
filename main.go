package main

import "github.com/andresmejia3/checkpoint/cmd"

func main() {
	cmd.Execute()
}
