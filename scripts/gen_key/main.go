package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"fluxdbc/internal/security"
)

func main() {
	id := flag.String("id", "default", "Key id recorded in gateway.yaml")
	flag.Parse()

	// 32 bytes of secure random data (256 bits).
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	key := "fx_" + hex.EncodeToString(buf)

	hash, err := security.HashKey(key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== New API Key Generated ===")
	fmt.Printf("key_id: %s\n", *id)
	fmt.Printf("key:    %s\n", key)
	fmt.Println()
	fmt.Println("Add to gateway.yaml:")
	fmt.Println()
	fmt.Println("keys:")
	fmt.Printf("  - id: %s\n", *id)
	fmt.Printf("    hash: \"%s\"\n", hash)
	fmt.Println()
	fmt.Println("1. Give the key itself to the client via a SECURE channel.")
	fmt.Println("2. The gateway only ever sees the hash; a lost key cannot be recovered.")
}
