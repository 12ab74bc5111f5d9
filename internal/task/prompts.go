package task

import "github.com/kanopusdev/aurelis/internal/models"

// Kind names a code-facing CLI command.
type Kind string

const (
	KindAnalyze  Kind = "analyze"
	KindGenerate Kind = "generate"
	KindExplain  Kind = "explain"
	KindFix      Kind = "fix"
	KindRefactor Kind = "refactor"
	KindDocs     Kind = "docs"
	KindTest     Kind = "test"
	KindValidate Kind = "validate"
	KindOptimize Kind = "optimize"
	KindSecurity Kind = "security"
)

// Definition binds a command to its task type and prompt scaffolding.
type Definition struct {
	Task        models.TaskType
	System      string
	Instruction string
	// NeedsFiles marks commands that operate on existing source files.
	NeedsFiles bool
}

const baseSystem = "You are Aurelis, an expert AI coding assistant. Be precise and concrete. " +
	"When you show code, emit complete, runnable snippets in fenced blocks with the language tag."

var definitions = map[Kind]Definition{
	KindAnalyze: {
		Task:        models.TaskCodeExplanation,
		System:      baseSystem + " You are reviewing code for correctness, clarity, and performance.",
		Instruction: "Analyze the following code. Report bugs, code smells, performance problems, and maintainability issues, ordered by severity.",
		NeedsFiles:  true,
	},
	KindGenerate: {
		Task:        models.TaskCodeGeneration,
		System:      baseSystem,
		Instruction: "Generate code for the following request. Include brief usage notes.",
	},
	KindExplain: {
		Task:        models.TaskCodeExplanation,
		System:      baseSystem + " Explain code for a competent developer who has not seen it before.",
		Instruction: "Explain what the following code does, walking through the important parts in order.",
		NeedsFiles:  true,
	},
	KindFix: {
		Task:        models.TaskErrorFixing,
		System:      baseSystem + " Diagnose the root cause before proposing a fix.",
		Instruction: "Find and fix the bugs in the following code. Show the corrected code and explain each fix.",
		NeedsFiles:  true,
	},
	KindRefactor: {
		Task:        models.TaskRefactoring,
		System:      baseSystem + " Preserve behavior exactly; improve structure and naming.",
		Instruction: "Refactor the following code for readability and maintainability without changing its behavior. Show the refactored code.",
		NeedsFiles:  true,
	},
	KindDocs: {
		Task:        models.TaskDocumentation,
		System:      baseSystem + " Write documentation that matches the code's existing conventions.",
		Instruction: "Write documentation for the following code: doc comments for the public surface plus a short usage overview.",
		NeedsFiles:  true,
	},
	KindTest: {
		Task:        models.TaskTestGeneration,
		System:      baseSystem + " Generate tests that exercise edge cases, not just the happy path.",
		Instruction: "Write unit tests for the following code using its language's standard testing conventions.",
		NeedsFiles:  true,
	},
	KindValidate: {
		Task:        models.TaskErrorFixing,
		System:      baseSystem + " You are validating code before it ships.",
		Instruction: "Validate the following code. List every defect that would block a release, or state explicitly that none were found.",
		NeedsFiles:  true,
	},
	KindOptimize: {
		Task:        models.TaskCodeOptimization,
		System:      baseSystem + " Favor algorithmic wins over micro-optimizations; keep the code readable.",
		Instruction: "Optimize the following code for performance. Explain the expected improvement for each change.",
		NeedsFiles:  true,
	},
	KindSecurity: {
		Task:        models.TaskSecurityAnalysis,
		System:      baseSystem + " You are performing a security review.",
		Instruction: "Review the following code for security vulnerabilities (injection, path traversal, secrets handling, unsafe deserialization, race conditions). Rate each finding by severity and show a remediation.",
		NeedsFiles:  true,
	},
}

// Lookup returns the definition for a command kind.
func Lookup(kind Kind) (Definition, bool) {
	d, ok := definitions[kind]
	return d, ok
}
