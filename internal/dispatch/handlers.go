package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/activecampaign"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/google"
	"github.com/skipshean/linear-agent-tasks/internal/adapters/linear"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

var (
	// ErrNoTagsParsed means the master list had no "[Category] Name" lines.
	ErrNoTagsParsed = errors.New("no tags found in master list")
	// ErrNoAutomations means the CRM account has no automations.
	ErrNoAutomations = errors.New("no automations found in ActiveCampaign")
	// ErrAutomationNotMatched means strict matching found no onboarding automation.
	ErrAutomationNotMatched = errors.New("no onboarding automation found")
)

// tagPageSize is the CRM's maximum page size for tag listing.
const tagPageSize = 100

// lifecycleDocTitle is the document created for the lifecycle states task.
const lifecycleDocTitle = "Contact Lifecycle States Documentation"

// goalName is the goal the onboarding automation should carry.
const goalName = "Became Customer During Onboard"

func lifecycleDoc(ctx context.Context, d *Deps, id string) (*outcome, error) {
	if _, err := d.Tracker.FetchIssue(ctx, id); err != nil {
		return nil, err
	}

	docID, err := d.Docs.CreateDocument(ctx, lifecycleDocTitle)
	if err != nil {
		if errors.Is(err, google.ErrPermissionDenied) {
			return &outcome{
				Message: "Service account needs access to Google Drive folder",
				Comment: permissionComment(err, d.DriveFolderID),
			}, err
		}
		return nil, err
	}

	url := google.DocumentURL(docID)
	err = d.Docs.InsertOutline(ctx, docID, []google.Section{
		{Heading: lifecycleDocTitle, Level: 1},
		{Heading: "Overview", Level: 2, Body: "This document describes all lifecycle states in the ActiveCampaign system."},
		{Heading: "Lifecycle States", Level: 2, Body: "To be populated with lifecycle state definitions."},
		{Heading: "State Transitions", Level: 2, Body: "To be populated with transition rules and triggering events."},
	})
	if err != nil {
		return &outcome{Details: map[string]any{"doc_id": docID, "doc_url": url}}, err
	}

	return &outcome{
		Message: "Lifecycle states document created",
		Details: map[string]any{"doc_id": docID, "doc_url": url},
		Comment: "✅ Lifecycle states documentation created.\n\n" +
			"**Document:** " + url + "\n\n" +
			"**Status:** Document structure created. Ready for lifecycle state definitions to be populated.\n\n" +
			"**Next Steps:**\n" +
			"1. Extract lifecycle state definitions from ActiveCampaign\n" +
			"2. Populate the document with state details\n" +
			"3. Add state transitions and business rules",
	}, nil
}

func permissionComment(err error, folderID string) string {
	if folderID == "" {
		folderID = "N/A"
	}
	return "⚠️ Google API permission issue encountered.\n\n" +
		"**Error:** " + err.Error() + "\n\n" +
		"**Required Setup:**\n" +
		"1. Share the Google Drive folder (ID: " + folderID + ") with the service account email\n" +
		"2. Ensure the Google Docs and Drive APIs are enabled\n" +
		"3. Verify the service account has Editor permissions\n\n" +
		"**Service Account Email:** Check the 'client_email' field in your credentials JSON file.\n\n" +
		"**Alternative:** Create the document manually in Google Drive and update this issue with the link."
}

// baseTabs are the data tabs every reporting spreadsheet starts with.
var baseTabs = []struct {
	Name    string
	Headers []interface{}
}{
	{"Contacts", []interface{}{"Contact ID", "Email", "First Name", "Last Name", "Lifecycle Stage", "Tags", "Created At"}},
	{"Deals", []interface{}{"Deal ID", "Contact ID", "Stage", "Value", "Currency", "Owner", "Updated At"}},
	{"Subscriptions", []interface{}{"Subscription ID", "Customer Email", "Plan", "Status", "MRR", "Started At", "Canceled At"}},
	{"Events", []interface{}{"Event", "Contact ID", "Occurred At", "Source"}},
}

func baseDataTabs(ctx context.Context, d *Deps, id string) (*outcome, error) {
	tabs := make([]string, len(baseTabs))
	for i, t := range baseTabs {
		tabs[i] = t.Name
	}

	sheetID, err := d.Sheets.CreateSpreadsheet(ctx, "Base Data", tabs)
	if err != nil {
		return nil, err
	}
	url := google.SpreadsheetURL(sheetID)
	details := map[string]any{"spreadsheet_id": sheetID, "spreadsheet_url": url, "tabs": tabs}

	for _, t := range baseTabs {
		if err := d.Sheets.WriteRange(ctx, sheetID, t.Name+"!A1", [][]interface{}{t.Headers}); err != nil {
			return &outcome{Details: details}, err
		}
	}

	return &outcome{
		Message: fmt.Sprintf("Base data spreadsheet created with %d tabs", len(tabs)),
		Details: details,
		Comment: linear.CompletedComment(
			"Base data tabs created: "+strings.Join(tabs, ", ")+".",
			map[string]string{"Spreadsheet": url}),
	}, nil
}

func listAllTags(ctx context.Context, crm CRM) ([]activecampaign.Tag, error) {
	var all []activecampaign.Tag
	for offset := 0; ; offset += tagPageSize {
		page, err := crm.ListTags(ctx, tagPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < tagPageSize {
			return all, nil
		}
	}
}

// bulkTags creates every master-list tag the CRM does not have yet. The list
// lives on the parent issue when there is one.
func bulkTags(ctx context.Context, d *Deps, id string) (*outcome, error) {
	issue, err := d.Tracker.FetchIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	source, sourceID := issue.Description, issue.Identifier
	if issue.Parent != nil && strings.TrimSpace(issue.Parent.Description) != "" {
		source, sourceID = issue.Parent.Description, issue.Parent.Identifier
	}

	wanted := ParseTags(source)
	if len(wanted) == 0 {
		return nil, remedy.Wrapf(ErrNoTagsParsed, []string{
			"Add the tag list to " + sourceID + " as lines like: - [Category] Tag Name",
			"Notes after a dash are ignored: - [Lifecycle] Trial Started — applied on signup",
		}, "%s", sourceID)
	}

	existing, err := listAllTags(ctx, d.CRM)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[strings.ToLower(t.Tag)] = true
	}

	var created, skipped, failed []string
	var firstErr error
	for _, name := range wanted {
		key := strings.ToLower(name)
		if have[key] {
			skipped = append(skipped, name)
			continue
		}
		_, made, err := d.CRM.CreateTag(ctx, name, activecampaign.TagTypeContact, "")
		switch {
		case err != nil:
			failed = append(failed, name)
			if firstErr == nil {
				firstErr = err
			}
		case made:
			created = append(created, name)
			have[key] = true
		default:
			skipped = append(skipped, name)
			have[key] = true
		}
	}

	out := &outcome{
		Message: fmt.Sprintf("%d tags created, %d already existed", len(created), len(skipped)),
		Details: map[string]any{
			"source":        sourceID,
			"parsed":        wanted,
			"created":       created,
			"skipped":       skipped,
			"failed":        failed,
			"created_count": len(created),
			"skipped_count": len(skipped),
		},
		Comment: tagsComment(sourceID, created, skipped, failed),
	}
	if len(failed) > 0 {
		return out, fmt.Errorf("%d of %d tags could not be created: %w", len(failed), len(wanted), firstErr)
	}
	return out, nil
}

func tagsComment(source string, created, skipped, failed []string) string {
	var b strings.Builder
	if len(failed) == 0 {
		b.WriteString("✅ Tags from the master list are in ActiveCampaign.\n\n")
	} else {
		b.WriteString("⚠️ Some tags could not be created.\n\n")
	}
	fmt.Fprintf(&b, "**Source:** %s\n", source)
	fmt.Fprintf(&b, "- Created: %d\n- Already existed: %d\n", len(created), len(skipped))
	if len(failed) > 0 {
		fmt.Fprintf(&b, "- Failed: %d\n", len(failed))
	}
	if len(created) > 0 {
		b.WriteString("\n**Created:**\n")
		for _, t := range created {
			b.WriteString("- " + t + "\n")
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n**Failed:**\n")
		for _, t := range failed {
			b.WriteString("- " + t + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// namingReportLimit caps how many offending tags a comment lists.
const namingReportLimit = 20

func namingCheck(ctx context.Context, d *Deps, id string) (*outcome, error) {
	tags, err := listAllTags(ctx, d.CRM)
	if err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		return &outcome{
			Message: "No tags in ActiveCampaign yet",
			Manual:  true,
			Comment: linear.ManualComment("No tags exist in ActiveCampaign yet, so the naming convention cannot be checked.",
				[]string{"Create the master-list tags first (TRA-59)", "Then re-run this task"}),
		}, nil
	}

	var bad []string
	for _, t := range tags {
		if !FollowsBracketConvention(t.Tag) {
			bad = append(bad, t.Tag)
		}
	}
	details := map[string]any{"checked": len(tags), "non_compliant": bad}

	if len(bad) == 0 {
		return &outcome{
			Message: fmt.Sprintf("All %d tags follow the [Category] Name convention", len(tags)),
			Details: details,
			Comment: linear.CompletedComment(fmt.Sprintf("All %d tags follow the `[Category] Name` convention.", len(tags)), nil),
		}, nil
	}

	listed := bad
	more := ""
	if len(listed) > namingReportLimit {
		listed = listed[:namingReportLimit]
		more = fmt.Sprintf(" (showing %d of %d)", namingReportLimit, len(bad))
	}
	summary := fmt.Sprintf("%d of %d tags do not follow the `[Category] Name` convention%s:\n- %s",
		len(bad), len(tags), more, strings.Join(listed, "\n- "))
	return &outcome{
		Message: fmt.Sprintf("%d tags need renaming", len(bad)),
		Details: details,
		Manual:  true,
		Comment: linear.ManualComment(summary, []string{
			"Rename each tag in ActiveCampaign → Contacts → Tags to `[Category] Name`",
			"Keep categories consistent with the master list",
			"Re-run this task to verify",
		}),
	}, nil
}

func onboardingGoal(ctx context.Context, d *Deps, id string) (*outcome, error) {
	automations, err := d.CRM.ListAutomations(ctx)
	if err != nil {
		return nil, err
	}
	if len(automations) == 0 {
		return nil, remedy.Wrap(ErrNoAutomations, "Create the onboarding automation in ActiveCampaign first")
	}

	var target *activecampaign.Automation
	for i := range automations {
		if strings.Contains(strings.ToLower(automations[i].Name), "onboard") {
			target = &automations[i]
			break
		}
	}
	fallback := false
	if target == nil {
		if d.Strict {
			return nil, remedy.Wrap(ErrAutomationNotMatched,
				`Name the onboarding automation so it contains "onboard"`,
				"Or set matching: best-effort to fall back to the first automation")
		}
		target = &automations[0]
		fallback = true
	}

	plan, err := d.CRM.PlanGoal(ctx, target.ID, goalName)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Goal '%s' requires manual creation in ActiveCampaign UI.\n\n", goalName)
	b.WriteString("**ActiveCampaign Details:**\n")
	fmt.Fprintf(&b, "- Automation: %s (ID: %s)\n", plan.AutomationName, plan.AutomationID)
	fmt.Fprintf(&b, "- Automation URL: %s\n", plan.AutomationURL)
	if fallback {
		b.WriteString("- Note: no automation name contains \"onboard\"; using the first automation\n")
	}
	b.WriteString("\n**Manual Steps Required:**\n")
	for i, s := range plan.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n**Note:** ActiveCampaign API v3 does not support direct goal creation. The goal must be added through the ActiveCampaign UI.")

	return &outcome{
		Message: fmt.Sprintf("Goal %q - %s", goalName, plan.Status()),
		Manual:  true,
		Details: map[string]any{
			"goal_name":       goalName,
			"automation_id":   plan.AutomationID,
			"automation_name": plan.AutomationName,
			"automation_url":  plan.AutomationURL,
			"instructions":    plan.Instructions,
			"fallback":        fallback,
		},
		Comment: b.String(),
	}, nil
}

// acknowledge covers tasks with no automation yet: it leaves a note and hands
// the task back to a person.
func acknowledge(title string) func(ctx context.Context, d *Deps, id string) (*outcome, error) {
	return func(ctx context.Context, d *Deps, id string) (*outcome, error) {
		return &outcome{
			Message: id + " acknowledged, no automation available yet",
			Manual:  true,
			Comment: linear.ManualComment(
				fmt.Sprintf("🤖 The agent picked up **%s** but has no automated handler for it yet.", title),
				[]string{"Complete this task manually", "Move the issue to Done when finished"}),
		}, nil
	}
}

// NewReviewHandler returns the handler used for issues outside the dispatch
// table: it posts an analysis comment and leaves the issue where it is.
func NewReviewHandler(d *Deps, issue *linear.Issue) Handler {
	return &task{
		id:    issue.Identifier,
		title: issue.Title,
		needs: needTracker,
		deps:  d,
		run: func(context.Context, *Deps) (*outcome, error) {
			return &outcome{
				Message: "Task reviewed and comment added",
				Manual:  true,
				Details: map[string]any{"action": "commented"},
				Comment: linear.ReviewComment(issue),
			}, nil
		},
	}
}
