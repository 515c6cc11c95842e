package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Generates the shared secrets the gateway reads from the environment:
// API_SECRET signs one-shot /query requests, JWT_SECRET signs session
// tokens. Run it once per secret.
func main() {
	// 32 bytes of secure random data (256 bits).
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	secret := hex.EncodeToString(bytes)

	fmt.Println("=== New Secure Secret Generated ===")
	fmt.Println(secret)
	fmt.Println("=====================================")
	fmt.Println("1. Copy this secret to your .env or secret manager (API_SECRET=... or JWT_SECRET=...).")
	fmt.Println("2. For API_SECRET, provide it to the calling service via a SECURE channel.")
	fmt.Println("3. DO NOT share this over Slack or email without encryption.")
}
