package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/whistle/internal/rules"
)

func newIgnoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Manage the ignore list",
	}
	cmd.AddCommand(
		newIgnoreListCmd(a),
		newIgnoreAddCmd(a),
		newIgnoreRemoveCmd(a),
		newIgnoreClearCmd(a),
	)
	return cmd
}

func newIgnoreListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all ignore rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(a.store())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Ignore) == 0 {
				fmt.Fprintln(out, "No ignore rules defined.")
				return nil
			}
			// Records are listed as stored so a broken rule can still be
			// found and removed by name.
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATTERN\tCOMMENT")
			for _, rec := range cfg.Ignore {
				comment := rec.Comment
				if _, err := rules.New(rec.Name, rec.Expr(), rec.Comment); err != nil {
					comment = "INVALID: " + err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Name, rec.Expr(), comment)
			}
			return tw.Flush()
		},
	}
}

func newIgnoreAddCmd(a *app) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:     "add NAME PATTERN",
		Short:   "Add an ignore rule",
		Example: `  whistle ignore add favicon 'favicon\.ico' --comment "browser noise"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.store()
			cfg, err := a.load(st)
			if err != nil {
				return err
			}
			rs, err := cfg.Rules()
			if err != nil {
				return err
			}
			r, err := rules.New(args[0], args[1], comment)
			if err != nil {
				return err
			}
			if err := rs.Add(r); errors.Is(err, rules.ErrDuplicateName) {
				return fmt.Errorf("ignore rule with name '%s' already exists", r.Name)
			} else if err != nil {
				return err
			}
			if err := st.SaveRules(rs.Records()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignore rule '%s' added.\n", r.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "why the rule exists")
	return cmd
}

func newIgnoreRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an ignore rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.store()
			cfg, err := a.load(st)
			if err != nil {
				return err
			}
			kept := make([]rules.Record, 0, len(cfg.Ignore))
			for _, rec := range cfg.Ignore {
				if rec.Name != args[0] {
					kept = append(kept, rec)
				}
			}
			if len(kept) == len(cfg.Ignore) {
				fmt.Fprintf(cmd.OutOrStdout(), "No ignore rule named '%s'.\n", args[0])
				return nil
			}
			if err := st.SaveRules(kept); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignore rule '%s' removed.\n", args[0])
			return nil
		},
	}
}

func newIgnoreClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every ignore rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			cfg, err := a.load(st)
			if err != nil {
				return err
			}
			n := len(cfg.Ignore)
			if n > 0 && !yes {
				return fmt.Errorf("refusing to remove %d ignore rules without --yes", n)
			}
			if err := st.SaveRules([]rules.Record{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ignore rules.\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
