package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cdlprep/cdlprep/internal/stats"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics in the question bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := rt.ctx(cmd)
		out := cmd.OutOrStdout()

		topics, err := rt.source.Topics(ctx)
		if err != nil {
			return fmt.Errorf("list topics: %w", err)
		}
		fmt.Fprintf(out, "%-20s  %-34s  %-12s  %s\n", "ID", "Name", "Class", "Questions")
		fmt.Fprintln(out, strings.Repeat("─", 82))
		for _, t := range topics {
			qs, err := rt.source.Questions(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("list questions for %s: %w", t.ID, err)
			}
			fmt.Fprintf(out, "%-20s  %-34s  %-12s  %d\n", t.ID, t.Name, t.Class, len(qs))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show study statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		historyLimit, _ := cmd.Flags().GetInt("history")

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := rt.ctx(cmd)
		out := cmd.OutOrStdout()
		user := rt.cfg.UserID

		st, err := rt.stats.Load(ctx, user)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "User:                %s\n", user)
		fmt.Fprintf(out, "Questions answered:  %d\n", st.QuestionsAnswered)
		fmt.Fprintf(out, "Average score:       %d%%\n", st.AverageScore)
		fmt.Fprintf(out, "Exam attempts:       %d\n", st.ExamAttempts)
		fmt.Fprintf(out, "Study time:          %d min\n", st.StudyTimeMinutes)
		fmt.Fprintf(out, "Streak:              %d day(s)\n", st.StreakDays)
		if st.LastStudyDate != "" {
			fmt.Fprintf(out, "Last studied:        %s\n", st.LastStudyDate)
		}

		status := rt.gate.Check(ctx, user)
		switch {
		case status.Entitled:
			fmt.Fprintln(out, "Access:              full")
		case status.Unknown:
			fmt.Fprintln(out, "Access:              free (usage unknown)")
		default:
			fmt.Fprintf(out, "Access:              free, %d of %d questions left\n", status.Remaining, status.Limit)
		}

		topics, err := rt.stats.TopicBreakdown(ctx, user)
		if err != nil {
			return err
		}
		if len(topics) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%-20s  %8s  %8s  %8s\n", "Topic", "Attempts", "Answered", "Accuracy")
			fmt.Fprintln(out, strings.Repeat("─", 52))
			for _, t := range topics {
				id := t.TopicID
				if id == "" {
					id = "(mixed)"
				}
				fmt.Fprintf(out, "%-20s  %8d  %8d  %7.0f%%\n", id, t.Attempts, t.Answered, t.Accuracy())
			}
		}

		if historyLimit > 0 {
			recs, err := rt.stats.History(ctx, user, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%-19s  %-8s  %-20s  %8s  %8s\n", "When", "Mode", "Topic", "Correct", "Accuracy")
			fmt.Fprintln(out, strings.Repeat("─", 72))
			for _, r := range recs {
				fmt.Fprintf(out, "%-19s  %-8s  %-20s  %4d/%-3d  %7.0f%%\n",
					r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Mode, r.TopicID,
					r.Correct, r.Answered, r.Accuracy)
			}
		}
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		out := cmd.OutOrStdout()

		st, err := rt.stats.Load(rt.ctx(cmd), rt.cfg.UserID)
		if err != nil {
			return err
		}
		for _, a := range stats.AchievementProgress(st) {
			mark := " "
			if a.Unlocked {
				mark = "✓"
			}
			fmt.Fprintf(out, "[%s] %s %-22s %3d%%  %s\n", mark, a.Icon, a.Title, progressPct(a), a.Description)
		}
		return nil
	},
}

func progressPct(a stats.AchievementStatus) int {
	if a.Unlocked {
		return 100
	}
	return a.Progress.Percent()
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset study statistics",
	Long:  "Reset study statistics and achievements. The free question counter is not reset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		withHistory, _ := cmd.Flags().GetBool("history")

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := rt.ctx(cmd)

		if err := rt.stats.Reset(ctx, rt.cfg.UserID, stats.ResetOptions{IncludeHistory: withHistory}); err != nil {
			return err
		}
		if err := rt.store.PracticeSessionRepo().Clear(ctx, rt.cfg.UserID); err != nil {
			return fmt.Errorf("clear practice session: %w", err)
		}
		rt.log.WithFields(logrus.Fields{"user_id": rt.cfg.UserID, "history": withHistory}).Info("stats reset")
		fmt.Fprintf(cmd.OutOrStdout(), "Stats reset for %s.\n", rt.cfg.UserID)
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("history", 0, "Also list the N most recent attempts")
	resetCmd.Flags().Bool("history", false, "Also delete the attempt history")
}
