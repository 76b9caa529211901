/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/nxtgm/feedserver/cmd"

func main() {
	cmd.Execute()
}
