package google

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets creates and writes spreadsheets.
type Sheets struct {
	sheets   *sheets.Service
	drive    *drive.Service
	folderID string
}

// NewSheets builds a Sheets client, see NewDocs for option handling.
func NewSheets(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Sheets, error) {
	opts, err := serviceOptions(ctx, cfg, SheetsScopes, extra)
	if err != nil {
		return nil, err
	}
	s, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	dr, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Sheets{sheets: s, drive: dr, folderID: cfg.DriveFolderID}, nil
}

// CreateSpreadsheet creates a spreadsheet with one tab per name and files it
// into the team folder when one is configured.
func (s *Sheets) CreateSpreadsheet(ctx context.Context, title string, tabs []string) (string, error) {
	ss := &sheets.Spreadsheet{Properties: &sheets.SpreadsheetProperties{Title: title}}
	for _, tab := range tabs {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: tab}})
	}

	created, err := s.sheets.Spreadsheets.Create(ss).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", classify(err, "create spreadsheet")
	}
	moveToFolder(ctx, s.drive, created.SpreadsheetId, s.folderID)
	return created.SpreadsheetId, nil
}

// WriteRange writes rows at an A1 range, parsed as if typed by a user.
func (s *Sheets) WriteRange(ctx context.Context, spreadsheetID, a1Range string, rows [][]interface{}) error {
	_, err := s.sheets.Spreadsheets.Values.Update(spreadsheetID, a1Range, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return classify(err, "write range "+a1Range)
	}
	return nil
}

// SpreadsheetURL returns the edit URL of a spreadsheet.
func SpreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id + "/edit"
}
