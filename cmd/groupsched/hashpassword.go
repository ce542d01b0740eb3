package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"groupsched/internal/auth"
)

// hashPassword handles the hash-password subcommand. It prints a
// basic_auth block to paste into the config file.
func hashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	username := fs.String("username", "admin", "Basic auth username to print with the hash")
	insecureUnmask := fs.Bool("insecure-unmask-password", false, "Show password as plain text (INSECURE!)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: groupsched hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Prints an Argon2id hash for basic_auth.password_hash.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	var password, passwordConfirm string
	if *insecureUnmask {
		fmt.Fprintf(os.Stderr, "WARNING: Password will be visible on screen!\n")
		password = readLine("Enter password:   ")
		passwordConfirm = readLine("Confirm password: ")
	} else {
		password = readPasswordWithMask("Enter password:   ")
		passwordConfirm = readPasswordWithMask("Confirm password: ")
	}

	if password == "" {
		fmt.Fprintf(os.Stderr, "Password cannot be empty\n")
		os.Exit(1)
	}
	if password != passwordConfirm {
		fmt.Fprintf(os.Stderr, "Passwords do not match\n")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("basic_auth:")
	fmt.Printf("  username: %q\n", *username)
	fmt.Printf("  password_hash: %q\n", hash)
}

func readLine(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var s string
	if _, err := fmt.Scanln(&s); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	return s
}

// readPasswordWithMask reads password input and echoes asterisks.
func readPasswordWithMask(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(syscall.Stdin)

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not a terminal or raw mode unavailable: fall back to hidden input.
		password, _ := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(password)
	}
	defer term.Restore(fd, oldState)

	var password []rune
	reader := bufio.NewReader(os.Stdin)
	for {
		char, _, err := reader.ReadRune()
		if err != nil {
			break
		}

		switch char {
		case '\n', '\r':
			fmt.Fprint(os.Stderr, "\r\n")
			return string(password)
		case 127, 8: // Backspace or Delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Fprint(os.Stderr, "\b \b")
			}
		case 3: // Ctrl+C
			term.Restore(fd, oldState)
			fmt.Fprintln(os.Stderr)
			os.Exit(1)
		default:
			if char >= 32 {
				password = append(password, char)
				fmt.Fprint(os.Stderr, "*")
			}
		}
	}

	fmt.Fprint(os.Stderr, "\r\n")
	return string(password)
}
