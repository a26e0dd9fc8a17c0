package main

import "github.com/MoonlightOffice/IDBWrapper/cmd"

func main() {
	cmd.Execute()
}
