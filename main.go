package main

import "github.com/matheuskafuri/pinfeed/cmd"

func main() {
	cmd.Execute()
}
