package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/stemsi/exstem-room/internal/config"
	"github.com/stemsi/exstem-room/internal/service"
	"golang.org/x/term"
)

const minPasswordLength = 6

func main() {
	cfg := config.Load()

	fmt.Println("=== Examiner Password ===")

	password, err := prompt("Enter Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	if len(password) < minPasswordLength {
		fmt.Fprintf(os.Stderr, "Error: Password must be at least %d characters\n", minPasswordLength)
		os.Exit(1)
	}

	confirm, err := prompt("Repeat Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	if !bytes.Equal(password, confirm) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		os.Exit(1)
	}

	hash, err := service.HashPassword(string(password), cfg.BcryptCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error hashing password:", err)
		os.Exit(1)
	}

	fmt.Println("Add this line to your .env:")
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}

func prompt(label string) ([]byte, error) {
	fmt.Print(label)
	defer fmt.Println()
	return term.ReadPassword(int(os.Stdin.Fd()))
}
