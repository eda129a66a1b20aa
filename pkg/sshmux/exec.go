package sshmux

import (
	"bytes"
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the transport and returns the captured output.
// Exit code is -1 if the command couldn't be executed at all.
// A non-zero exit code with nil error means the command ran but failed.
func (c *sshClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.ExecStreamContext(context.Background(), cmd, &stdoutBuf, &stderrBuf)
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, err
}

// ExecStreamContext runs a command, streaming output to the provided writers
// as it arrives. Cancelling the context kills the remote process and tears
// down the session; the shared transport stays up.
func (c *sshClient) ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.client.NewSession()
	if err != nil {
		return -1, &ConnectionError{Target: c.key, Cause: err}
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		return -1, &ConnectionError{Target: c.key, Cause: err}
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case waitErr := <-done:
		if waitErr == nil {
			return 0, nil
		}
		if exitErr, ok := waitErr.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil
		}
		return -1, waitErr
	}
}

// Alive reports whether the transport still answers.
// A global request is far cheaper than opening a throwaway session.
func (c *sshClient) Alive() bool {
	if c.client == nil {
		return false
	}
	_, _, err := c.client.SendRequest("keepalive@nlsh", true, nil)
	return err == nil
}

// Close tears down the transport.
func (c *sshClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Key returns the (user, host, port) multiplexing key.
func (c *sshClient) Key() string {
	return c.key
}

// Address returns the resolved host:port address.
func (c *sshClient) Address() string {
	return c.address
}
