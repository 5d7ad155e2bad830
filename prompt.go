package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"library-lending/auth"
)

// console reads answers line by line and writes prompts. It implements
// library.Prompter.
type console struct {
	sc  *bufio.Scanner
	out io.Writer
	// secretFd is the terminal to read masked secrets from, or -1 to read
	// them as ordinary lines.
	secretFd int
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{sc: bufio.NewScanner(in), out: out, secretFd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.secretFd = int(f.Fd())
	}
	return c
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// ask prints prompt and returns the trimmed answer; false means input ended.
func (c *console) ask(prompt string) (string, bool) {
	c.printf("\n%s", prompt)
	if !c.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

// askCancellable is ask where answering "cancel" also ends the flow.
func (c *console) askCancellable(prompt string) (string, bool) {
	v, ok := c.ask(prompt)
	if !ok || strings.EqualFold(v, "cancel") {
		return "", false
	}
	return v, true
}

// askInt repeats until it reads an integer of at least minimum.
func (c *console) askInt(prompt string, minimum int) (int, bool) {
	for {
		v, ok := c.askCancellable(prompt)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			c.println("Please enter an integer.")
			continue
		}
		if n < minimum {
			c.printf("The number must be at least %d.\n", minimum)
			continue
		}
		return n, true
	}
}

// Confirm repeats the question until the answer is yes or no. Ended input
// counts as no.
func (c *console) Confirm(question string) bool {
	for {
		v, ok := c.ask(question + " ('Yes'/'No') : ")
		if !ok {
			return false
		}
		switch strings.ToLower(v) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
	}
}

// readSecret securely reads a secret with masking when attached to a terminal.
func (c *console) readSecret(prompt string) (string, error) {
	if c.secretFd < 0 {
		v, ok := c.ask(prompt)
		if !ok {
			return "", io.EOF
		}
		return v, nil
	}
	c.printf("\n%s", prompt)
	b, err := term.ReadPassword(c.secretFd)
	if err != nil {
		return "", err
	}
	c.println() // Add newline after password input
	return strings.TrimSpace(string(b)), nil
}

// newSecret reads a secret twice and repeats until it is acceptable and
// both entries match.
func (c *console) newSecret(prompt string) (string, bool) {
	for {
		first, err := c.readSecret(prompt)
		if err != nil || strings.EqualFold(first, "cancel") {
			return "", false
		}
		if err := auth.CheckNewSecret(first); err != nil {
			if errors.Is(err, auth.ErrSecretTooLong) {
				c.println("\nThe password must be at most 72 bytes long.")
			} else {
				c.println("\nThe password cannot be empty.")
			}
			continue
		}
		second, err := c.readSecret("Re-enter to confirm : ")
		if err != nil {
			return "", false
		}
		if first == second {
			return first, true
		}
		c.println("\nThe passwords do not match.")
	}
}
