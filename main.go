package main

import "github.com/emanuelstiuj/Mini-Shell/cmd"

func main() {
	cmd.Execute()
}
