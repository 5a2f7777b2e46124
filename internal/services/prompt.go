package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/arnold/goalmentor-api/internal/models"
)

// MaxHistory is how many earlier turns of a conversation go into a request.
const MaxHistory = 8

const noGoalsText = "No goals have been defined yet."

// GoalView is the slice of a goal the mentor sees. Nil fields are left out
// of the prompt.
type GoalView struct {
	Title       string
	Description *string
	Deadline    *time.Time
	Priority    *int
	Progress    *int
}

func ProjectGoal(g models.Goal) GoalView {
	priority, progress := g.Priority, g.Progress
	return GoalView{
		Title:       g.Title,
		Description: g.Description,
		Deadline:    g.Deadline,
		Priority:    &priority,
		Progress:    &progress,
	}
}

// ProjectChatGoal maps a goal sent with a chat message. A deadline that
// does not parse is left out rather than failing the turn.
func ProjectChatGoal(g models.ChatGoal) GoalView {
	v := GoalView{
		Title:       g.Title,
		Description: g.Description,
		Priority:    g.Priority,
		Progress:    g.Progress,
	}
	if g.Deadline != nil {
		if d, err := parseDeadline(strings.TrimSpace(*g.Deadline)); err == nil {
			v.Deadline = &d
		}
	}
	return v
}

// FormatGoals renders one numbered line per goal, for example
// "1. Run 5k, Deadline: 3/9/2026, Priority: 3, Progress: 50%".
func FormatGoals(goals []GoalView) string {
	if len(goals) == 0 {
		return noGoalsText
	}
	lines := make([]string, 0, len(goals))
	for i, g := range goals {
		parts := []string{fmt.Sprintf("%d. %s", i+1, g.Title)}
		if g.Description != nil && *g.Description != "" {
			parts = append(parts, "Description: "+*g.Description)
		}
		if g.Deadline != nil {
			parts = append(parts, "Deadline: "+g.Deadline.UTC().Format("1/2/2006"))
		}
		if g.Priority != nil {
			parts = append(parts, fmt.Sprintf("Priority: %d", *g.Priority))
		}
		if g.Progress != nil {
			parts = append(parts, fmt.Sprintf("Progress: %d%%", *g.Progress))
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

const mentorPrompt = `You are an AI Personal Mentor and Goal Planner.

USER GOALS:
%s

RESPONSE RULES:
- Always respond in valid Markdown
- Be concise and actionable
- Do not explain your role
- Ask at most one follow-up question
- Insert a blank line after every markdown heading

FORMAT:

### Focus

One short paragraph, starting on a new line.

### Action Plan

A numbered list (1., 2., 3.) of actionable steps. No bullet points.

### Time Commitment

A single sentence estimate.

### Checkpoint

One measurable outcome.

### Insight

Optional. Only include it if it adds value.`

func SystemPrompt(goals []GoalView) string {
	return fmt.Sprintf(mentorPrompt, FormatGoals(goals))
}

// BuildMessages assembles a completion request: the system prompt, the
// last limit turns of history in chronological order, then the new message.
func BuildMessages(system string, history []ChatTurn, message string, limit int) []ChatTurn {
	if limit >= 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	msgs := make([]ChatTurn, 0, len(history)+2)
	msgs = append(msgs, ChatTurn{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatTurn{Role: models.RoleUser, Content: message})
	return msgs
}
