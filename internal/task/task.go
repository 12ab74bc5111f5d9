// Package task turns CLI commands into routed model requests: it selects the
// task type, assembles prompts from source files, and enforces the context
// token budget.
package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kanopusdev/aurelis/internal/models"
)

// ErrNoInput indicates a command was invoked without files or a prompt.
var ErrNoInput = errors.New("no input: provide file paths or a prompt")

// Input bundles user-supplied material for a command.
type Input struct {
	Paths  []string // source files to include
	Prompt string   // freeform instruction or description
}

// responseReserve keeps headroom in the context window for the answer.
const responseReserve = 8192

// Build assembles a routed request for a command kind.
func Build(kind Kind, in Input) (*models.ModelRequest, error) {
	def, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown command: %q", kind)
	}

	if def.NeedsFiles && len(in.Paths) == 0 && in.Prompt == "" {
		return nil, ErrNoInput
	}
	if !def.NeedsFiles && in.Prompt == "" && len(in.Paths) == 0 {
		return nil, ErrNoInput
	}

	var user strings.Builder
	user.WriteString(def.Instruction)
	if in.Prompt != "" {
		user.WriteString("\n\n")
		user.WriteString(in.Prompt)
	}

	for _, path := range in.Paths {
		content, err := readSource(path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&user, "\n\nFile: %s\n```%s\n%s\n```", path, languageTag(path), content)
	}

	req := &models.ModelRequest{
		TaskType: def.Task,
		System:   def.System,
		Messages: []models.ChatMessage{{Role: "user", Content: user.String()}},
	}

	if err := checkBudget(req); err != nil {
		return nil, err
	}
	return req, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s: %w", path, err)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// checkBudget rejects requests that cannot fit the smallest context window in
// the catalog with room left for a response, so the request fits whichever
// candidate the router lands on, fallbacks included.
func checkBudget(req *models.ModelRequest) error {
	minContext := 0
	for _, c := range models.Catalog() {
		if minContext == 0 || c.ContextTokens < minContext {
			minContext = c.ContextTokens
		}
	}

	tokens := models.CountRequestTokens(models.ModelGPT4o, req)
	if tokens > minContext-responseReserve {
		return fmt.Errorf("input too large: ~%d tokens exceeds the %d token budget; pass fewer or smaller files", tokens, minContext-responseReserve)
	}
	return nil
}

func languageTag(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".rb":
		return "ruby"
	case ".sh":
		return "bash"
	case ".sql":
		return "sql"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
