package propose

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/logger"
)

// CommandProposer obtains proposals by running an external program. The
// request is written to the program's stdin as JSON and the proposal is
// read from its stdout as JSON. This keeps the tool independent of any
// particular model or API; the configured command owns that conversation.
type CommandProposer struct {
	argv []string
	log  logger.Logger
}

// NewCommandProposer builds a proposer around the given argv. The first
// element is the program, the rest are its arguments.
func NewCommandProposer(argv []string, log logger.Logger) (*CommandProposer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New(errors.ErrConfig,
			"no proposer command configured",
			"set proposer.command in the config file, e.g. [\"nlsh-propose\"]")
	}
	if log == nil {
		log = logger.Default()
	}
	return &CommandProposer{argv: argv, log: log}, nil
}

// Propose runs the configured command once and decodes its answer.
func (p *CommandProposer) Propose(ctx context.Context, req Request) (Proposal, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Proposal{}, errors.WrapWithCode(err, errors.ErrExec, "failed to encode proposal request", "")
	}

	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.Debug("running proposer %s (step %d)", p.argv[0], len(req.Steps)+1)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Proposal{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return Proposal{}, errors.New(errors.ErrExec,
			"proposer command failed: "+detail,
			"check that "+p.argv[0]+" is installed and working")
	}

	var proposal Proposal
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &proposal); err != nil {
		return Proposal{}, errors.WrapWithCode(err, errors.ErrExec,
			"proposer returned malformed output",
			"the proposer must print a single JSON object on stdout")
	}
	proposal.Command = strings.TrimSpace(proposal.Command)
	return proposal, nil
}

// Func adapts the proposer to the plain function type.
func (p *CommandProposer) Func() Func {
	return p.Propose
}
