// Package main provides the entry point for the Scoutly CLI.
package main

func main() {
	Execute()
}
