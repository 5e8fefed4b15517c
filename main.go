package main

import "github.com/ValentinKolb/giggle/cmd"

func main() {
	cmd.Execute()
}
