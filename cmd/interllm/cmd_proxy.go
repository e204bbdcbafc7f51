package main

import (
	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/proxy"
)

var (
	proxyLogDir string
	proxyName   string
)

func newProxyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy -- <command> [args...]",
		Short: "Wrap a stdio subprocess and record its traffic",
		Long: `Proxy runs a command, forwarding stdin, stdout and stderr unmodified
while recording every line of traffic to a JSONL log. It exits with the
wrapped command's exit code, so it can be dropped transparently in front of
any stdio-based agent process.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := proxy.New(proxyLogDir, proxyName, args)
			if err != nil {
				return err
			}

			code, err := p.Run()
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&proxyLogDir, "log-dir", "proxy_logs", "Directory for the traffic log")
	cmd.Flags().StringVar(&proxyName, "name", "agent", "Name prefix for the traffic log file")

	return cmd
}
