package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with the routed models",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Aurelis interactive shell. /help for commands, /exit to quit.")

	currentTask := models.TaskGeneral
	currentModel := modelFlag
	var history []models.ChatMessage

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "aurelis> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleShellCommand(out, line, &currentTask, &currentModel, &history)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		history = append(history, models.ChatMessage{Role: "user", Content: line})

		req := &models.ModelRequest{
			TaskType: currentTask,
			Model:    currentModel,
			Messages: history,
			NoCache:  true, // conversation turns are not cacheable
		}

		resp, err := a.orch.ProcessStream(cmd.Context(), req, func(delta string) error {
			fmt.Fprint(out, delta)
			return nil
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			// Drop the failed turn so a retry does not duplicate it.
			history = history[:len(history)-1]
			continue
		}
		fmt.Fprintln(out)

		history = append(history, models.ChatMessage{Role: "assistant", Content: resp.Content})
	}

	return scanner.Err()
}

func handleShellCommand(out io.Writer, line string, currentTask *models.TaskType, currentModel *string, history *[]models.ChatMessage) (bool, error) {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintln(out, "/task <type>   set the task type (e.g. code_generation)")
		fmt.Fprintln(out, "/model <id>    pin a model, or `auto` to route by task")
		fmt.Fprintln(out, "/clear         forget the conversation")
		fmt.Fprintln(out, "/exit          leave the shell")

	case "/task":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /task <type>")
		}
		t := models.TaskType(fields[1])
		if !t.Valid() {
			return false, fmt.Errorf("unknown task type: %s", fields[1])
		}
		*currentTask = t
		fmt.Fprintf(out, "task set to %s\n", t)

	case "/model":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /model <id|auto>")
		}
		if fields[1] == "auto" {
			*currentModel = ""
			fmt.Fprintln(out, "routing by task type")
			break
		}
		if _, ok := models.Lookup(fields[1]); !ok {
			return false, fmt.Errorf("unknown model: %s", fields[1])
		}
		*currentModel = fields[1]
		fmt.Fprintf(out, "model pinned to %s\n", fields[1])

	case "/clear":
		*history = nil
		fmt.Fprintln(out, "conversation cleared")

	default:
		return false, fmt.Errorf("unknown command: %s", fields[0])
	}

	return false, nil
}
