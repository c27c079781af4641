package main

import (
	"os"

	"github.com/sweety-ai/sweety-chat/chatservice"
)

func main() {
	if err := chatservice.Run(); err != nil {
		os.Exit(1)
	}
}
