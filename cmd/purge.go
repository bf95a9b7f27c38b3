// This file is part of dnac-backup
//
// Copyright (C) 2021  dnac-backup authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ciscodnac/dnac-backup/pkg/backupapi"
	"github.com/ciscodnac/dnac-backup/pkg/format"
	"github.com/ciscodnac/dnac-backup/pkg/purge"
	"github.com/ciscodnac/dnac-backup/pkg/retention"
)

const confirmPrompt = "Warning: Confirm if you want to delete these backups (y/n): "

var (
	purgeKeep         string
	purgeIncompatible bool
	purgeForce        bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the backups a retention policy does not keep.",
	Long: `Delete the backups a retention policy does not keep.

--keep 3 keeps the three most recent backups, --keep 30d keeps the backups
that ended in the last thirty days, --incompatible deletes every backup the
appliance can no longer restore.`,
	Run: func(cmd *cobra.Command, args []string) {
		policy, err := retention.FromOptions(purgeKeep, purgeIncompatible)
		if err != nil {
			logger.Fatal("invalid retention policy", zap.Error(err))
		}
		_, c := mustBackupClient()

		opts := []purge.Option{purge.WithLogger(logger)}
		if !purgeForce {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				opts = append(opts, purge.WithConfirmer(newPromptConfirmer(os.Stdin, os.Stdout)))
			} else {
				logger.Warn("stdin is not a terminal, use --force to purge without confirmation")
			}
		}

		res, err := purge.New(c, opts...).Purge(cmd.Context(), policy, !purgeForce)
		if res == nil {
			logger.Fatal("purge failed", zap.Error(err))
		}
		printPurgeResult(os.Stdout, res)
		if err != nil {
			logger.Fatal("purge failed", zap.Error(err))
		}
	},
}

func printPurgeResult(w io.Writer, res *purge.Result) {
	switch {
	case len(res.Candidates) == 0:
		fmt.Fprintln(w, "No backup to delete")
	case res.Aborted:
		fmt.Fprintln(w, "Warning: Purge aborted")
	default:
		if len(res.Deleted) > 0 {
			fmt.Fprintf(w, "Success: Backups (%d) deleted %s\n", len(res.Deleted), strings.Join(res.Deleted, ", "))
		}
		for _, f := range res.Failed {
			fmt.Fprintf(w, "Error: Backup %s not deleted: %v\n", f.ID, f.Err)
		}
	}
}

// promptConfirmer shows the candidates and asks on the terminal.
type promptConfirmer struct {
	in       *bufio.Reader
	out      io.Writer
	attempts int
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out, attempts: 3}
}

func (p *promptConfirmer) Confirm(candidates []backupapi.Backup) (bool, error) {
	format.Table(format.BackupHeaders, format.New().BackupRows(candidates))
	return p.ask()
}

func (p *promptConfirmer) ask() (bool, error) {
	for i := 0; i < p.attempts; i++ {
		fmt.Fprint(p.out, confirmPrompt)
		line, err := p.in.ReadString('\n')
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintln(p.out, "Error: invalid answer, type y or n")
	}
	return false, nil
}

func parseAnswer(s string) (answer, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "1", "on":
		return true, true
	case "n", "no", "f", "false", "0", "off":
		return false, true
	}
	return false, false
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVar(&purgeKeep, "keep", "3", "backups to keep: a count (3) or a number of days (30d)")
	purgeCmd.Flags().BoolVar(&purgeIncompatible, "incompatible", false, "delete every incompatible backup")
	purgeCmd.Flags().BoolVar(&purgeForce, "force", false, "do not ask for confirmation")
}
