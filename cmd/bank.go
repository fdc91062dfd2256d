package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/question"
)

var importCmd = &cobra.Command{
	Use:   "import <bank.json>",
	Short: "Import a question bank into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		bank, err := question.LoadBankFile(args[0])
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := question.Import(rt.ctx(cmd), rt.store.QuestionRepo(), bank, force)
		if errors.Is(err, question.ErrOlderBank) {
			return fmt.Errorf("%w (use --force to replace it)", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.PreviousVersion != "" {
			fmt.Fprintf(out, "Replaced bank %s with %s: %d topics, %d questions.\n",
				res.PreviousVersion, res.Version, res.Topics, res.Questions)
		} else {
			fmt.Fprintf(out, "Imported bank %s: %d topics, %d questions.\n", res.Version, res.Topics, res.Questions)
		}
		return nil
	},
}

var entitleCmd = &cobra.Command{
	Use:   "entitle",
	Short: "Grant or revoke full access for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		grant, _ := cmd.Flags().GetBool("grant")
		revoke, _ := cmd.Flags().GetBool("revoke")
		source, _ := cmd.Flags().GetString("source")
		if grant == revoke {
			return errors.New("exactly one of --grant or --revoke is required")
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.store.EntitlementRepo().SetEntitled(rt.ctx(cmd), rt.cfg.UserID, grant, source); err != nil {
			return err
		}
		verb := "Granted"
		if revoke {
			verb = "Revoked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s full access for %s.\n", verb, rt.cfg.UserID)
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <question-id>",
	Short: "Explain the answer to a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, _ := cmd.Flags().GetInt("selected")

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := rt.ctx(cmd)

		q, ok, err := question.FindQuestion(ctx, rt.source, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("question %q not found", args[0])
		}
		if selected >= len(q.Options) {
			return fmt.Errorf("--selected must be below %d", len(q.Options))
		}

		ex, err := rt.explain.Explain(ctx, q, selected)
		if errors.Is(err, explain.ErrUnavailable) {
			return fmt.Errorf("%w: configure an LLM provider (CDLPREP_LLM_PROVIDER) to generate one", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, q.Text)
		fmt.Fprintln(out)
		for i, opt := range q.Options {
			mark := " "
			if i == q.CorrectIndex {
				mark = "✓"
			}
			fmt.Fprintf(out, " %s %c) %s\n", mark, 'A'+i, opt)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, ex.Text)
		fmt.Fprintf(out, "\n(source: %s)\n", ex.Source)
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("force", false, "Replace the installed bank even if it is newer")

	entitleCmd.Flags().Bool("grant", false, "Grant full access")
	entitleCmd.Flags().Bool("revoke", false, "Revoke full access")
	entitleCmd.Flags().String("source", "manual", "Who granted the entitlement")

	explainCmd.Flags().Int("selected", -1, "Option index the learner chose")
}
