package propose

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/logger"
)

func TestNewCommandProposerRequiresCommand(t *testing.T) {
	_, err := NewCommandProposer(nil, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = NewCommandProposer([]string{""}, logger.Noop())
	require.Error(t, err)
}

func TestCommandProposerRoundTrip(t *testing.T) {
	p, err := NewCommandProposer([]string{
		"sh", "-c", `cat > /dev/null; printf '{"command":"uname -a","continue":false,"reasoning":"inspect kernel"}'`,
	}, logger.Noop())
	require.NoError(t, err)

	proposal, err := p.Propose(context.Background(), Request{
		Prompt: "what kernel is this",
		Facts:  facts.Facts{OS: "Linux", Shell: "zsh"},
	})
	require.NoError(t, err)
	assert.Equal(t, "uname -a", proposal.Command)
	assert.False(t, proposal.Continue)
	assert.Equal(t, "inspect kernel", proposal.Reasoning)
}

func TestCommandProposerReceivesRequest(t *testing.T) {
	// The program validates its stdin is the JSON request and reflects
	// the prompt back as the proposed command.
	script := `
payload=$(cat)
cmd=$(printf '%s' "$payload" | sed -n 's/.*"prompt":"\([^"]*\)".*/\1/p')
printf '{"command":"echo %s","continue":true}' "$cmd"
`
	p, err := NewCommandProposer([]string{"sh", "-c", script}, logger.Noop())
	require.NoError(t, err)

	proposal, err := p.Propose(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo hello", proposal.Command)
	assert.True(t, proposal.Continue)
}

func TestCommandProposerFailure(t *testing.T) {
	p, err := NewCommandProposer([]string{"sh", "-c", "echo broken >&2; exit 3"}, logger.Noop())
	require.NoError(t, err)

	_, err = p.Propose(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "broken")
}

func TestCommandProposerMalformedOutput(t *testing.T) {
	p, err := NewCommandProposer([]string{"sh", "-c", "cat > /dev/null; echo not-json"}, logger.Noop())
	require.NoError(t, err)

	_, err = p.Propose(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
}

func TestRequestSerializesSteps(t *testing.T) {
	req := Request{
		Prompt: "archive the logs",
		Steps: []Step{{
			Command:           "find /var/log -name '*.log'",
			ContinueRequested: true,
			NextHint:          "tar the files found",
			ExitCode:          0,
			Output:            "/var/log/syslog.log\n",
		}},
		ShellHistory: []string{"cd /var/log"},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, "tar the files found", decoded.Steps[0].NextHint)
	assert.True(t, decoded.Steps[0].ContinueRequested)
	assert.Equal(t, []string{"cd /var/log"}, decoded.ShellHistory)
}
