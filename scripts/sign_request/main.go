package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"fluxdbc/internal/security"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: sign_request <secret> <method> <path> <body>")
		fmt.Println(`Example: sign_request mysecret POST /query '{"source":"orders","query":"SELECT 1"}'`)
		return
	}

	secret, method, path, body := os.Args[1], os.Args[2], os.Args[3], os.Args[4]
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	fmt.Printf("X-Timestamp: %s\n", timestamp)
	fmt.Printf("X-Signature: %s\n", security.Sign(secret, method, path, body, timestamp))
}
