// Package commands implements the easyvault CLI subcommands.
package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/easyvault/pkg/client"
	"github.com/spf13/cobra"
)

// PassphraseVar is read when --passphrase is not given.
const PassphraseVar = "EASYVAULT_PASSPHRASE"

// BuildInfo is injected by the linker.
type BuildInfo struct {
	Version   string
	BuildDate string
}

// Globals holds the persistent flags shared by every subcommand.
type Globals struct {
	URL       string
	CAFile    string
	UserAgent string
	Timeout   time.Duration

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// NewClient builds an SDK client from the global flags.
func (g *Globals) NewClient(keyID string) (*client.Client, error) {
	var opts []client.Option
	if g.CAFile != "" {
		opts = append(opts, client.WithCAFile(g.CAFile))
	}
	if g.Timeout > 0 {
		opts = append(opts, client.WithTimeout(g.Timeout))
	}
	if g.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(g.UserAgent))
	}
	return client.New(g.URL, keyID, opts...)
}

func (g *Globals) getenv(k string) string {
	if g.Getenv == nil {
		return os.Getenv(k)
	}
	return g.Getenv(k)
}

// NewRootCommand assembles the CLI.
func NewRootCommand(info BuildInfo) *cobra.Command {
	g := &Globals{}
	root := &cobra.Command{
		Use:           "easyvault",
		Short:         "Read and manage entries on an easyvault server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.URL, "url", "http://localhost:8080", "server base URL")
	root.PersistentFlags().StringVar(&g.CAFile, "ca-file", "", "PEM CA certificate to trust")
	root.PersistentFlags().StringVar(&g.UserAgent, "user-agent", "", "User-Agent sent to the server")
	root.PersistentFlags().DurationVar(&g.Timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		NewGetCommand(g),
		NewPullCommand(g),
		NewPushCommand(g),
		NewVersionCommand(info),
	)
	return root
}

// resolvePassphrase prefers the flag, then PassphraseVar, then one line of in.
func resolvePassphrase(g *Globals, flagValue string, in io.Reader, out io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := g.getenv(PassphraseVar); v != "" {
		return v, nil
	}

	fmt.Fprint(out, "Enter vault passphrase: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no passphrase given")
	}
	p := strings.TrimSpace(scanner.Text())
	if p == "" {
		return "", errors.New("no passphrase given")
	}
	return p, nil
}
