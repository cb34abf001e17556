// jarvis is a voice assistant. It waits for its keyword, listens for a
// command and speaks the language model's answer back.
//
// Usage:
//
//	jarvis                          # Ollama with the default model
//	jarvis --llm groq               # Groq, reads GROQ_API_KEY
//	jarvis --keyword computer       # Answer to a different keyword
//	jarvis --no-tui                 # Plain log output instead of the status view
//
// Deepgram is used for speech in both directions and reads DEEPGRAM_API_KEY.
// Variables are also loaded from a .env file in the working directory.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
