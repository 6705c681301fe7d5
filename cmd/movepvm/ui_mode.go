package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode selects the bubbletea progress view of `movepvm build`.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch mode := uiMode(strings.TrimSpace(strings.ToLower(value))); mode {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("invalid --ui value %q: the progress view is auto, on or off", value)
}

// useProgressView decides between the progress view and plain stage logs.
// Echoed tool commands and debug logs share the terminal, so either one
// turns the view off even when it was asked for.
func useProgressView(mode uiMode, printCommands, verbose bool) bool {
	if printCommands || verbose {
		return false
	}
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	}
	return isTerminal(os.Stdout)
}
