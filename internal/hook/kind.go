// Package hook generates, installs, verifies, and removes the shell startup
// snippet that logs every interactive command to a JSON-lines file. The same
// algorithm drives local installs (file I/O) and remote installs (commands
// run on a target); only the medium differs.
package hook

import (
	"path/filepath"
	"strings"
)

// Kind is a closed set of shells the hook knows about. Each kind has its own
// capture mechanism; the divergence is real and deliberate, not something to
// unify behind one template.
type Kind int

const (
	Unsupported Kind = iota
	Zsh
	Bash
	PowerShell
)

// String returns the shell's common name.
func (k Kind) String() string {
	switch k {
	case Zsh:
		return "zsh"
	case Bash:
		return "bash"
	case PowerShell:
		return "powershell"
	default:
		return "unsupported"
	}
}

// DetectKind maps a shell name or path ("zsh", "/bin/bash", "pwsh") onto a Kind.
func DetectKind(shell string) Kind {
	switch strings.ToLower(filepath.Base(shell)) {
	case "zsh":
		return Zsh
	case "bash":
		return Bash
	case "pwsh", "powershell":
		return PowerShell
	default:
		return Unsupported
	}
}

// Markers delimiting the installed block. Hash comments are native to all
// three supported shells. The block between them is only ever added or
// removed as a whole.
const (
	BeginMarker = "# >>> nlsh history hook >>>"
	EndMarker   = "# <<< nlsh history hook <<<"
)

// DefaultLogPath is where the hook script appends its JSON lines.
// Embedded unexpanded so the shell resolves $HOME at runtime.
const DefaultLogPath = "$HOME/.config/nlsh/history.jsonl"

// DefaultLimit is how many history entries the hook retains.
const DefaultLimit = 500

// StartupFile returns the per-kind startup file path, unexpanded.
// Empty for unsupported shells.
func StartupFile(k Kind) string {
	switch k {
	case Zsh:
		return "$HOME/.zshrc"
	case Bash:
		return "$HOME/.bashrc"
	case PowerShell:
		return "$HOME/.config/powershell/Microsoft.PowerShell_profile.ps1"
	default:
		return ""
	}
}
