package hook

import "fmt"

// generator produces the hook script for one shell kind.
type generator func(limit int, logPath string) string

// generators is the dispatch table. Kinds absent here can't host a hook.
var generators = map[Kind]generator{
	Zsh:        zshScript,
	Bash:       bashScript,
	PowerShell: powershellScript,
}

// GenerateScript returns the marker-delimited startup snippet for the given
// shell kind, or "" for shells that can't host a hook. The retained-line
// limit and log path are baked in literally; changing either requires a
// reinstall.
func GenerateScript(kind Kind, limit int, logPath string) string {
	gen, ok := generators[kind]
	if !ok {
		return ""
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logPath == "" {
		logPath = DefaultLogPath
	}
	return gen(limit, logPath)
}

// zshScript registers preexec/precmd hooks: preexec captures the command
// line before it runs, precmd sees its exit status at the next prompt.
func zshScript(limit int, logPath string) string {
	return fmt.Sprintf(`%s
__nlsh_preexec() { __nlsh_last_cmd="$1"; }
__nlsh_precmd() {
  local code=$?
  [ -n "$__nlsh_last_cmd" ] || return 0
  local cmd="${__nlsh_last_cmd//\\/\\\\}"
  cmd="${cmd//\"/\\\"}"
  __nlsh_last_cmd=""
  local log=%q
  mkdir -p "${log%%/*}" 2>/dev/null
  printf '{"cmd":"%%s","exit":%%d,"time":"%%s"}\n' "$cmd" "$code" "$(date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ)" >> "$log"
  tail -n %d "$log" > "$log.tmp" && mv "$log.tmp" "$log"
}
autoload -Uz add-zsh-hook
add-zsh-hook preexec __nlsh_preexec
add-zsh-hook precmd __nlsh_precmd
%s`, BeginMarker, logPath, limit, EndMarker)
}

// bashScript chains onto PROMPT_COMMAND: bash has no preexec, so the last
// command is recovered from history at prompt time and deduplicated.
func bashScript(limit int, logPath string) string {
	return fmt.Sprintf(`%s
__nlsh_log() {
  local code=$?
  local cmd
  cmd=$(HISTTIMEFORMAT= builtin history 1 | sed 's/^ *[0-9]* *//')
  [ -n "$cmd" ] || return 0
  [ "$cmd" = "$__nlsh_prev_cmd" ] && return 0
  __nlsh_prev_cmd="$cmd"
  cmd="${cmd//\\/\\\\}"
  cmd="${cmd//\"/\\\"}"
  local log=%q
  mkdir -p "${log%%/*}" 2>/dev/null
  printf '{"cmd":"%%s","exit":%%d,"time":"%%s"}\n' "$cmd" "$code" "$(date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ)" >> "$log"
  tail -n %d "$log" > "$log.tmp" && mv "$log.tmp" "$log"
}
case "$PROMPT_COMMAND" in
  *__nlsh_log*) ;;
  *) PROMPT_COMMAND="__nlsh_log${PROMPT_COMMAND:+; $PROMPT_COMMAND}" ;;
esac
%s`, BeginMarker, logPath, limit, EndMarker)
}

// powershellScript wraps the prompt function: PowerShell has neither preexec
// nor PROMPT_COMMAND, so the previous prompt renderer is saved and chained.
func powershellScript(limit int, logPath string) string {
	return fmt.Sprintf(`%s
$global:__nlshPrevPrompt = $function:prompt
$global:__nlshLogPath = "%s".Replace('$HOME', $HOME)
function global:prompt {
    $ok = $?
    $h = Get-History -Count 1
    if ($h -and $h.Id -ne $global:__nlshLastId) {
        $global:__nlshLastId = $h.Id
        $code = if ($ok) { 0 } else { 1 }
        $cmd = $h.CommandLine.Replace('\', '\\').Replace('"', '\"')
        $stamp = (Get-Date).ToUniversalTime().ToString('yyyy-MM-ddTHH:mm:ssZ')
        New-Item -ItemType Directory -Force -Path (Split-Path $global:__nlshLogPath) | Out-Null
        Add-Content -Path $global:__nlshLogPath -Value ('{"cmd":"' + $cmd + '","exit":' + $code + ',"time":"' + $stamp + '"}')
        $tail = Get-Content -Path $global:__nlshLogPath -Tail %d
        Set-Content -Path $global:__nlshLogPath -Value $tail
    }
    & $global:__nlshPrevPrompt
}
%s`, BeginMarker, logPath, limit, EndMarker)
}
