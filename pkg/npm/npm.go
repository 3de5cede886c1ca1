// Package npm drives the external package installer as a subprocess with a
// locked-down configuration.
package npm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// userConfigName is the transient npm config file written next to the
// install root. Registry credentials go here, never on the command line,
// so they cannot leak through process listings.
const userConfigName = ".plugkit-npmrc"

// hardenedArgs locks the installer down for ephemeral function storage:
// packages land under the prefix, no bin symlinks, no audit or funding
// network calls, offline-preferring, no lockfile, minimal output.
var hardenedArgs = []string{
	"--global-style",
	"--no-bin-links",
	"--no-audit",
	"--no-fund",
	"--prefer-offline",
	"--no-package-lock",
	"--loglevel=error",
}

// ProcessError reports a subprocess that failed to spawn, timed out, or
// exited non-zero. Output holds whatever combined stdout+stderr was
// captured before the failure.
type ProcessError struct {
	Command  string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s %s: exit %d", e.Command, strings.Join(e.Args, " "), e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Client invokes npm for install and remove operations scoped to an install
// root.
type Client struct {
	// Bin is the installer executable; defaults to "npm".
	Bin string
	// Timeout bounds each subprocess; zero means no timeout beyond ctx.
	Timeout time.Duration

	// Registry overrides the default registry URL.
	Registry string
	// ScopeRegistries maps package scopes ("@corp") to registry URLs.
	ScopeRegistries map[string]string
	// Tokens maps registry hosts ("//registry.corp.com/") to bearer tokens.
	Tokens map[string]string
	// ClientCert, ClientKey, and CA configure TLS client identity and a
	// custom trust bundle, as PEM file paths.
	ClientCert string
	ClientKey  string
	CA         string

	// Runner overrides subprocess execution; defaults to the real thing.
	Runner Runner
	Logger *log.Logger
}

// Install installs the given references into root.
func (c *Client) Install(ctx context.Context, refs []string, root string) (string, error) {
	args := append([]string{"install", "--prefix", root}, hardenedArgs...)
	args = append(args, refs...)
	return c.run(ctx, args, root)
}

// Remove uninstalls the given package names from root.
func (c *Client) Remove(ctx context.Context, names []string, root string) (string, error) {
	args := append([]string{"uninstall", "--prefix", root}, hardenedArgs...)
	args = append(args, names...)
	return c.run(ctx, args, root)
}

func (c *Client) run(ctx context.Context, args []string, root string) (string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "npm"
	}

	if c.needsUserConfig() {
		cfgPath := filepath.Join(root, userConfigName)
		if err := os.WriteFile(cfgPath, []byte(c.userConfig()), 0o600); err != nil {
			return "", fmt.Errorf("writing installer config: %w", err)
		}
		defer os.Remove(cfgPath)
		args = append(args, "--userconfig", cfgPath)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	if c.Logger != nil {
		c.Logger.Debug("running installer", "bin", bin, "args", args)
	}

	runner := c.Runner
	if runner == nil {
		runner = execRunner{}
	}
	out, code, err := runner.Run(ctx, bin, args)
	if err != nil {
		return string(out), &ProcessError{
			Command:  bin,
			Args:     args,
			ExitCode: code,
			Output:   string(out),
			Err:      err,
		}
	}
	return string(out), nil
}

func (c *Client) needsUserConfig() bool {
	return c.Registry != "" || len(c.ScopeRegistries) > 0 || len(c.Tokens) > 0 ||
		c.ClientCert != "" || c.ClientKey != "" || c.CA != ""
}

// userConfig renders the transient npmrc. Lines are emitted in sorted order
// so the file content is stable for a given configuration.
func (c *Client) userConfig() string {
	var lines []string
	if c.Registry != "" {
		lines = append(lines, "registry="+c.Registry)
	}
	for scope, reg := range c.ScopeRegistries {
		lines = append(lines, scope+":registry="+reg)
	}
	for host, token := range c.Tokens {
		lines = append(lines, host+":_authToken="+token)
	}
	if c.ClientCert != "" {
		lines = append(lines, "certfile="+c.ClientCert)
	}
	if c.ClientKey != "" {
		lines = append(lines, "keyfile="+c.ClientKey)
	}
	if c.CA != "" {
		lines = append(lines, "cafile="+c.CA)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
