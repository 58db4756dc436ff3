// Command gensecret prints random hex encoded key suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytesLen = 32

// HS256 key must not be shorter than the hash output
const minSecretKeyBytesLen = 32

func main() {
	n := pflag.IntP("bytes", "n", defaultSecretKeyBytesLen, "Key length in bytes")
	pflag.Parse()

	key, err := generate(*n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(key)
}

func generate(n int) (string, error) {
	if n < minSecretKeyBytesLen {
		return "", fmt.Errorf("key has to be at least %d bytes, got %d", minSecretKeyBytesLen, n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
