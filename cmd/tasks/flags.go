package main

import (
	"strconv"
	"strings"
)

// parseFlags parses --key=value and --flag style args into a map.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

// splitArgs returns the first positional argument and the parsed flags.
func splitArgs(args []string) (string, map[string]string) {
	var positional string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			positional = arg
			break
		}
	}
	return positional, parseFlags(args)
}

func intFlag(flags map[string]string, key string, defaultVal int) int {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
