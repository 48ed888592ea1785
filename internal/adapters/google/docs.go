package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf16"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

var (
	// ErrPermissionDenied means the API refused the call with 403.
	ErrPermissionDenied = errors.New("google permission denied")
	// ErrQuotaExceeded means Drive storage quota is exhausted, common for
	// service accounts, which have none.
	ErrQuotaExceeded = errors.New("google drive storage quota exceeded")
)

// Section is one heading plus body paragraph of a generated document.
type Section struct {
	Heading string
	// Level is the heading level, 1-6. 0 means 1.
	Level int
	Body  string
}

// Docs creates and fills Google Docs.
type Docs struct {
	docs     *docs.Service
	drive    *drive.Service
	folderID string
}

// NewDocs builds a Docs client. Credentials come from cfg when
// CredentialsPath is set; extra options are appended (tests use them to
// point at a local server).
func NewDocs(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Docs, error) {
	opts, err := serviceOptions(ctx, cfg, DocsScopes, extra)
	if err != nil {
		return nil, err
	}
	d, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}
	dr, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Docs{docs: d, drive: dr, folderID: cfg.DriveFolderID}, nil
}

func serviceOptions(ctx context.Context, cfg Config, scopes []string, extra []option.ClientOption) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		base, err := ClientOptions(ctx, cfg, scopes...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, base...)
	}
	return append(opts, extra...), nil
}

// CreateDocument creates an empty document and files it into the team folder
// when one is configured. Failing to move the file is logged, not returned.
func (d *Docs) CreateDocument(ctx context.Context, title string) (string, error) {
	doc, err := d.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", classify(err, "create document")
	}
	moveToFolder(ctx, d.drive, doc.DocumentId, d.folderID)
	return doc.DocumentId, nil
}

// InsertOutline appends sections to a freshly created (empty) document,
// styling each heading.
func (d *Docs) InsertOutline(ctx context.Context, documentID string, sections []Section) error {
	reqs := OutlineRequests(sections)
	if len(reqs) == 0 {
		return nil
	}
	_, err := d.docs.Documents.BatchUpdate(documentID, &docs.BatchUpdateDocumentRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return classify(err, "update document")
	}
	return nil
}

// OutlineRequests builds the batch update for sections, starting at index 1
// (the start of an empty body). Indexes count UTF-16 code units.
func OutlineRequests(sections []Section) []*docs.Request {
	var reqs []*docs.Request
	index := int64(1)
	for _, s := range sections {
		if s.Heading != "" {
			text := s.Heading + "\n"
			n := utf16Len(text)
			level := s.Level
			if level < 1 || level > 6 {
				level = 1
			}
			reqs = append(reqs,
				&docs.Request{InsertText: &docs.InsertTextRequest{
					Location: &docs.Location{Index: index},
					Text:     text,
				}},
				&docs.Request{UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
					Range:          &docs.Range{StartIndex: index, EndIndex: index + n},
					ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: fmt.Sprintf("HEADING_%d", level)},
					Fields:         "namedStyleType",
				}},
			)
			index += n
		}
		if s.Body != "" {
			text := strings.TrimRight(s.Body, "\n") + "\n\n"
			n := utf16Len(text)
			reqs = append(reqs,
				&docs.Request{InsertText: &docs.InsertTextRequest{
					Location: &docs.Location{Index: index},
					Text:     text,
				}},
				&docs.Request{UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
					Range:          &docs.Range{StartIndex: index, EndIndex: index + n},
					ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: "NORMAL_TEXT"},
					Fields:         "namedStyleType",
				}},
			)
			index += n
		}
	}
	return reqs
}

func utf16Len(s string) int64 {
	return int64(len(utf16.Encode([]rune(s))))
}

// DocumentURL returns the edit URL of a document.
func DocumentURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}

// moveToFolder re-parents a file into folderID. Best-effort.
func moveToFolder(ctx context.Context, svc *drive.Service, fileID, folderID string) {
	if folderID == "" || fileID == "" {
		return
	}
	log := logging.WithComponent("google")

	f, err := svc.Files.Get(fileID).Fields("parents").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		log.Warn("Could not read file parents", slog.String("file", fileID), slog.Any("error", err))
		return
	}
	_, err = svc.Files.Update(fileID, &drive.File{}).
		AddParents(folderID).
		RemoveParents(strings.Join(f.Parents, ",")).
		SupportsAllDrives(true).
		Fields("id, parents").
		Context(ctx).Do()
	if err != nil {
		log.Warn("Could not move file to folder",
			slog.String("file", fileID), slog.String("folder", folderID), slog.Any("error", err))
	}
}

// classify maps API errors to package sentinels with next steps.
func classify(err error, op string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if strings.Contains(strings.ToLower(gerr.Error()+gerr.Body), "storagequotaexceeded") {
			return remedy.Wrap(fmt.Errorf("%s: %w: %w", op, ErrQuotaExceeded, err),
				"Use OAuth credentials instead of a service account (service accounts have no Drive quota)",
				"Or create the file manually in the shared Drive folder")
		}
		if gerr.Code == http.StatusForbidden {
			return remedy.Wrap(fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err),
				"Enable the Docs, Sheets and Drive APIs for the credentials' Cloud project",
				"Share the Drive folder with the service account email as Editor",
				"Check google.cloud_project_id if the APIs are enabled in a different project")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
