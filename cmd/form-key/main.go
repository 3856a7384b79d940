package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/barswebadmin/leagueops/internal/api/middleware"
)

// Prints a bcrypt hash for FORM_WEBHOOK_KEY_HASH. Without --key a random key is generated.
func main() {
	keyFlag := flag.String("key", "", "form webhook key to hash (save it; it cannot be retrieved later)")
	flag.Parse()

	key := strings.TrimSpace(*keyFlag)
	if key == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		key = hex.EncodeToString(buf)
		fmt.Printf("Generated key (put this in the form script):\n  %s\n\n", key)
	}

	hash, err := middleware.HashKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("FORM_WEBHOOK_KEY_HASH=%s\n", hash)
}
