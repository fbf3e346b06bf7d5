package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/danpilch/kpstk/pkg/output"
)

const prompt = "kp> "

// runShell reads commands from the app's input until EOF or quit. Each
// line runs against a fresh command tree so flags never leak between
// lines; the session persists.
func (a *App) runShell(parent *cobra.Command) error {
	ctx := parent.Context()
	scanner := bufio.NewScanner(a.in)

	fmt.Fprint(a.out, prompt)
	for scanner.Scan() {
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			fmt.Fprint(a.out, prompt)
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}

		cmd := a.shellCommand()
		cmd.SetArgs(args)
		if err := cmd.ExecuteContext(ctx); err != nil {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(a.out, prompt)
	}
	fmt.Fprintln(a.out)
	return scanner.Err()
}

func (a *App) shellCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.CompletionOptions.DisableDefaultCmd = true

	for _, cmd := range a.commands() {
		if switchesFiles[cmd.Name()] {
			a.filesFlag(cmd)
		}
		root.AddCommand(cmd)
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "open PATH...",
			Short: "Open more traces",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := a.session.Open(cmd.Context(), args...)
				var merr *multierror.Error
				if errors.As(err, &merr) {
					for _, e := range merr.Errors {
						fmt.Fprintf(a.errOut, "error: %v\n", e)
					}
				} else if err != nil {
					return err
				}
				return a.listFiles(cmd)
			},
		},
		&cobra.Command{
			Use:   "use FILE [FILE]",
			Short: "Make one trace, or a pair to compare, active; FILE is a path or index",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.session.SetActive(args...); err != nil {
					return err
				}
				return a.listFiles(cmd)
			},
		},
		&cobra.Command{
			Use:   "quit",
			Short: "Leave the shell",
			RunE:  func(*cobra.Command, []string) error { return nil },
		},
	)
	return root
}

// switchesFiles names the shell commands that accept -f.
var switchesFiles = map[string]bool{
	"in": true, "ex": true, "ina": true, "exa": true,
	"caller": true, "callee": true, "func": true,
}

// filesFlag lets a shell command make other traces active, by path or
// index, before it runs. The switch persists like `use`.
func (a *App) filesFlag(cmd *cobra.Command) {
	var files []string
	cmd.Flags().StringSliceVarP(&files, "files", "f", nil, "make these traces active first (path or index, at most 2)")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		if len(files) == 0 {
			return nil
		}
		return a.session.SetActive(files...)
	}
}

func (a *App) listFiles(cmd *cobra.Command) error {
	files := output.Files(a.session.Entries(), a.session.Active())
	return a.formatter(cmd.OutOrStdout()).RenderFiles(files)
}
