// Package main provides the terminal chat client.
package main

import "github.com/anshu-sharma0/chatmessage/cli/cmd"

func main() {
	cmd.Execute()
}
