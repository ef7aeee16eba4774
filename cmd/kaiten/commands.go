package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/root-talis/kaiten"
	"github.com/root-talis/kaiten/revision"
	"github.com/root-talis/kaiten/source/files"
)

func newSetupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create a work directory with a default kaiten.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := files.Setup(a.workDir); err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "created work directory %s\n", a.workDir)
			return nil
		},
	}
}

func newInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ledger table in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Init(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, "ledger is ready")
			return nil
		},
	}
}

func newRevisionCommand(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Create a new empty revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := files.NewFilesSource(os.DirFS(a.workDir), "."); err != nil {
				return err
			}

			rev := revision.Create(a.clock, message)

			fileName, err := files.Write(a.workDir, rev)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "created revision %s: %s\n", rev.ID, fileName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "revision description")

	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List applied revisions from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.History(cmd.Context())
			if err != nil {
				return err
			}

			printHistory(a.stdout, records)
			return nil
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	var patch bool

	cmd := &cobra.Command{
		Use:       "show {all|pending|applied}",
		Short:     "Show revisions of the work directory with their status",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"all", "pending", "applied"},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "all"
			if len(args) > 0 {
				filter = args[0]
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			status, err := s.Status(cmd.Context())
			if err != nil {
				return err
			}

			states := filterStates(status.States, filter)
			printStates(a.stdout, states, status.Head)

			if patch {
				printPatches(a.stdout, states)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&patch, "patch", false, "print upgrade and downgrade scripts")

	return cmd
}

func newUpgradeCommand(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Apply pending revisions oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.Upgrade(cmd.Context(), kaiten.UpgradeOptions{Count: count})
			printResult(a.stdout, result, err)

			return err
		},
	}

	cmd.Flags().IntVarP(&count, "num", "n", 0, "number of revisions to apply, 0 applies all")

	return cmd
}

func newRollbackCommand(a *app) *cobra.Command {
	var (
		count  int
		target string
	)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert applied revisions newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.Rollback(cmd.Context(), kaiten.RollbackOptions{Count: count, Target: target})
			printResult(a.stdout, result, err)

			return err
		},
	}

	cmd.Flags().IntVarP(&count, "num", "n", 0, "number of revisions to revert, 0 reverts one")
	cmd.Flags().StringVar(&target, "rev", "", "revert down to and including this revision id")
	cmd.MarkFlagsMutuallyExclusive("num", "rev")

	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kaiten version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "kaiten %s\n", version)
		},
	}
}
