package priority

import (
	"fmt"
	"strings"

	"dev.helix.debate/internal/models"
)

// MinTodoScore is the extraction floor: only stop-ship and high-priority
// issues become todos.
const MinTodoScore = 65

// Todo is one actionable item derived from a scored issue.
type Todo struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

// verbGerunds maps a leading verb to its present-continuous form for the
// todo's active description.
var verbGerunds = []struct{ verb, gerund string }{
	{"fix ", "Fixing "},
	{"add ", "Adding "},
	{"remove ", "Removing "},
	{"update ", "Updating "},
	{"create ", "Creating "},
	{"delete ", "Deleting "},
	{"implement ", "Implementing "},
	{"refactor ", "Refactoring "},
	{"improve ", "Improving "},
	{"optimize ", "Optimizing "},
	{"debug ", "Debugging "},
	{"test ", "Testing "},
	{"write ", "Writing "},
	{"read ", "Reading "},
	{"check ", "Checking "},
	{"verify ", "Verifying "},
	{"validate ", "Validating "},
	{"migrate ", "Migrating "},
	{"upgrade ", "Upgrading "},
	{"downgrade ", "Downgrading "},
}

// ExtractTodos converts issues scoring at or above MinTodoScore into
// pending todos. Lower-priority issues are left for the decision pack.
func ExtractTodos(scoredIssues []models.Issue) []Todo {
	var todos []Todo
	for _, issue := range scoredIssues {
		if issue.PriorityScore < MinTodoScore {
			continue
		}
		title := issue.Title
		if title == "" {
			title = "Unknown issue"
		}
		effort := issue.Effort
		if effort == "" {
			effort = "medium"
		}
		todos = append(todos, Todo{
			Content:    fmt.Sprintf("%s (%s)", title, FormatEffort(effort)),
			Status:     "pending",
			ActiveForm: activeForm(title),
		})
	}
	return todos
}

// activeForm converts an issue title to present continuous, falling back to
// "Working on ..." when the title does not start with a known verb.
func activeForm(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))

	for _, vg := range verbGerunds {
		if strings.HasPrefix(lower, vg.verb) {
			return vg.gerund + title[len(vg.verb):]
		}
	}
	return "Working on " + strings.ToLower(title)
}

// FormatTodosMarkdown renders todos as a markdown checklist.
func FormatTodosMarkdown(todos []Todo) string {
	if len(todos) == 0 {
		return "- [ ] No high-priority action items"
	}

	lines := make([]string, 0, len(todos))
	for _, todo := range todos {
		mark := " "
		if todo.Status == "completed" {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", mark, todo.Content))
	}
	return strings.Join(lines, "\n")
}

// TodosSummary renders a count line for display.
func TodosSummary(todos []Todo) string {
	switch len(todos) {
	case 0:
		return "No high-priority action items"
	case 1:
		return "1 action item"
	default:
		return fmt.Sprintf("%d action items", len(todos))
	}
}
