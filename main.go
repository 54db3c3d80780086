/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/dazeez1/notes-app/cmd"

func main() {
	cmd.Execute()
}
