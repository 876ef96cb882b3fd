package main

import "elearning-chatbot-be/internal/cli"

func main() {
	cli.Execute()
}
