package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// IsInteractive reports whether prompting the user makes sense: stdin must be
// a terminal and --yes must not be set.
func IsInteractive() bool {
	if IsYesMode() {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptSelect shows numbered options on stdout and reads a choice from
// stdin. Returns the zero-based index, or -1 when the user skips (empty
// input, "0", or anything unparseable).
func PromptSelect(message string, options []string) int {
	if len(options) == 0 {
		return -1
	}

	fmt.Printf("\n%s\n", message)
	for i, opt := range options {
		fmt.Printf("  [%d] %s\n", i+1, opt)
	}
	fmt.Print("  [0] Skip\n\n? Select: ")

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return -1
	}

	choice, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || choice < 1 || choice > len(options) {
		return -1
	}
	return choice - 1
}
