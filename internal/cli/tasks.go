package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/kanopusdev/aurelis/internal/task"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// taskCommands declares the code-facing subcommands. generate takes a
// description; the rest take source files.
var taskCommands = []struct {
	kind      task.Kind
	use       string
	short     string
	wantsDesc bool
}{
	{task.KindAnalyze, "analyze <files...>", "Analyze code for bugs, smells, and performance issues", false},
	{task.KindGenerate, "generate <description>", "Generate code from a description", true},
	{task.KindExplain, "explain <files...>", "Explain what code does", false},
	{task.KindFix, "fix <files...>", "Find and fix bugs in code", false},
	{task.KindRefactor, "refactor <files...>", "Refactor code without changing behavior", false},
	{task.KindDocs, "docs <files...>", "Write documentation for code", false},
	{task.KindTest, "test <files...>", "Generate unit tests for code", false},
	{task.KindValidate, "validate <files...>", "Validate code and report release blockers", false},
	{task.KindOptimize, "optimize <files...>", "Optimize code for performance", false},
	{task.KindSecurity, "security <files...>", "Review code for security vulnerabilities", false},
}

func init() {
	for _, tc := range taskCommands {
		rootCmd.AddCommand(newTaskCommand(tc.kind, tc.use, tc.short, tc.wantsDesc))
	}
}

func newTaskCommand(kind task.Kind, use, short string, wantsDesc bool) *cobra.Command {
	var extraPrompt string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, kind, args, extraPrompt, wantsDesc)
		},
	}

	cmd.Flags().StringVarP(&extraPrompt, "prompt", "p", "", "additional instructions for the model")
	return cmd
}

func runTask(cmd *cobra.Command, kind task.Kind, args []string, extraPrompt string, wantsDesc bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	in := task.Input{Prompt: extraPrompt}
	if wantsDesc {
		desc := strings.Join(args, " ")
		if in.Prompt != "" {
			in.Prompt = desc + "\n\n" + in.Prompt
		} else {
			in.Prompt = desc
		}
	} else {
		in.Paths = args
	}

	req, err := task.Build(kind, in)
	if err != nil {
		return err
	}
	req.Model = modelFlag
	req.NoCache = noCache

	a.log.Debug("running task",
		zap.String("command", string(kind)),
		zap.String("task", string(req.TaskType)),
		zap.Strings("files", in.Paths))

	resp, err := a.orch.Process(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Content)

	if verbose {
		printFooter(cmd, resp)
	}
	return nil
}

func printFooter(cmd *cobra.Command, resp *models.ModelResponse) {
	cached := ""
	if resp.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n-- %s%s | %d tokens | confidence %.1f | %s\n",
		resp.Model, cached, resp.Usage.TotalTokens, resp.Confidence,
		resp.Stats.Duration.Round(10*time.Millisecond))
}
