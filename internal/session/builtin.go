package session

import "strings"

// shellBuiltins are commands that only make sense inside the user's own
// interactive shell. Running them in a child shell has no lasting effect,
// so the loop stops and hands the command to the user instead.
var shellBuiltins = map[string]bool{
	"cd":      true,
	"export":  true,
	"unset":   true,
	"alias":   true,
	"unalias": true,
	"source":  true,
	".":       true,
	"setopt":  true,
	"shopt":   true,
	"ulimit":  true,
	"exec":    true,
	"fg":      true,
	"bg":      true,
	"jobs":    true,
	"exit":    true,
}

// isShellBuiltin reports whether the command's first word is a builtin
// that mutates interactive shell state. Compound commands are only
// flagged when the builtin is the sole command; "cd /tmp && make" still
// works in a child shell.
func isShellBuiltin(command string) bool {
	command = strings.TrimSpace(command)
	if strings.ContainsAny(command, "|&;") {
		return false
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	return shellBuiltins[fields[0]]
}
