package linear

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Commenter posts a comment on an issue addressed by its identifier.
// *Client satisfies it.
type Commenter interface {
	PostComment(ctx context.Context, identifier, body string) error
}

// Notifier handles status comments on Linear issues
type Notifier struct {
	client Commenter
}

// NewNotifier creates a new Linear notifier
func NewNotifier(client Commenter) *Notifier {
	return &Notifier{
		client: client,
	}
}

// SubmittedComment is the body posted when a task is queued for cloud execution.
func SubmittedComment(submittedAt, queueFile string) string {
	return fmt.Sprintf("☁️ **Cloud Execution Submitted**\n\n"+
		"Task has been submitted for cloud execution.\n\n"+
		"**Submission Details:**\n"+
		"- Submitted: %s\n"+
		"- Queue File: `%s`\n"+
		"- Status: Pending execution\n\n"+
		"Execution will begin shortly. Status updates will be posted here.", submittedAt, queueFile)
}

// ReviewComment is the body posted for tasks without a dedicated handler.
func ReviewComment(issue *Issue) string {
	state := issue.State.Name
	if state == "" {
		state = "Unknown"
	}
	return fmt.Sprintf("🤖 **Agent Review**\n\n"+
		"This task has been reviewed by the agent workflow system.\n\n"+
		"**Task Analysis:**\n"+
		"- Description length: %d characters\n"+
		"- Status: %s\n"+
		"- Priority: %s\n\n"+
		"**Note:** This task may require manual execution or additional context.\n"+
		"Please review and provide more details if agent automation is desired.",
		len([]rune(issue.Description)), state, PriorityName(issue.Priority))
}

// CompletedComment is the body posted when a handler finished its work.
func CompletedComment(summary string, links map[string]string) string {
	var b strings.Builder
	b.WriteString("✅ **Task completed by agent**\n\n")
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	for _, k := range slices.Sorted(maps.Keys(links)) {
		fmt.Fprintf(&b, "**%s**: %s\n", k, links[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// ManualComment is the body posted when the remaining work needs a person.
func ManualComment(summary string, steps []string) string {
	var b strings.Builder
	b.WriteString("📝 **Manual follow-up required**\n\n")
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(steps) > 0 {
		b.WriteString("**Steps:**\n")
		for i, s := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FailedComment is the body posted when a handler could not finish.
func FailedComment(reason string) string {
	return fmt.Sprintf("❌ **Agent could not complete this task**\n\n**Reason**: %s\n\n_Please review the issue and consider manual intervention or reopening with more details._", reason)
}

// NotifySubmitted posts the cloud submission comment
func (n *Notifier) NotifySubmitted(ctx context.Context, identifier, submittedAt, queueFile string) error {
	if err := n.client.PostComment(ctx, identifier, SubmittedComment(submittedAt, queueFile)); err != nil {
		return fmt.Errorf("failed to add submission comment: %w", err)
	}
	return nil
}

// NotifyReviewed posts the generic review comment
func (n *Notifier) NotifyReviewed(ctx context.Context, issue *Issue) error {
	if err := n.client.PostComment(ctx, issue.Identifier, ReviewComment(issue)); err != nil {
		return fmt.Errorf("failed to add review comment: %w", err)
	}
	return nil
}

// NotifyTaskCompleted posts completion comment with links to created artifacts
func (n *Notifier) NotifyTaskCompleted(ctx context.Context, identifier, summary string, links map[string]string) error {
	if err := n.client.PostComment(ctx, identifier, CompletedComment(summary, links)); err != nil {
		return fmt.Errorf("failed to add completion comment: %w", err)
	}
	return nil
}

// NotifyManualRequired posts the manual follow-up comment
func (n *Notifier) NotifyManualRequired(ctx context.Context, identifier, summary string, steps []string) error {
	if err := n.client.PostComment(ctx, identifier, ManualComment(summary, steps)); err != nil {
		return fmt.Errorf("failed to add manual follow-up comment: %w", err)
	}
	return nil
}

// NotifyTaskFailed posts failure comment
func (n *Notifier) NotifyTaskFailed(ctx context.Context, identifier, reason string) error {
	if err := n.client.PostComment(ctx, identifier, FailedComment(reason)); err != nil {
		return fmt.Errorf("failed to add failure comment: %w", err)
	}
	return nil
}
