package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/interllm/interllm/internal/session"
)

var logsTimeline bool

func newLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <log-dir|log-file>",
		Short: "List run logs or render one as a timeline",
		Long: `Logs lists the durable run logs in a directory, newest first. Given a
single log file, or with --timeline on a directory, it renders the most
recent run as a human-readable timeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			if !info.IsDir() {
				return renderLog(cmd, args[0])
			}

			files, err := session.ListLogs(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				cmd.Printf("No run logs in %s\n", args[0])
				return nil
			}

			if logsTimeline {
				return renderLog(cmd, files[0].Path)
			}

			for _, f := range files {
				cmd.Printf("  %s  %s  %d event(s)\n",
					f.ModTime.Format("2006-01-02 15:04:05"), f.Name, f.NumEvents)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&logsTimeline, "timeline", false, "Render the newest log as a timeline instead of listing")

	return cmd
}

func renderLog(cmd *cobra.Command, path string) error {
	events, err := session.ReadEvents(path)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events in %s", path)
	}
	session.RenderTimeline(cmd.OutOrStdout(), events)
	return nil
}
