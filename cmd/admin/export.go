package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"wafiPortal/internal/review"
	"wafiPortal/internal/submission"
)

const exportSheet = "Submissions"

var exportHeader = []any{
	"Reference", "Created", "Status", "Full name", "National ID", "Nationality",
	"Marital status", "Phone", "Email", "Qualification", "Major", "Files", "Signed",
}

// export writes every submission matching the filter flags to an XLSX
// workbook, walking all result pages.
func (c *console) export(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return errors.New("usage: export <file.xlsx> [filter flags]")
	}
	path := args[0]
	f, err := parseListFlags(args[1:])
	if err != nil {
		return err
	}
	f.PageSize = review.MaxPageSize

	items, err := c.collect(ctx, f)
	if err != nil {
		return err
	}
	book, err := buildWorkbook(items)
	if err != nil {
		return err
	}
	defer book.Close()
	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	fmt.Fprintf(c.out, "exported %d submissions to %s\n", len(items), path)
	return nil
}

func (c *console) collect(ctx context.Context, f review.Filter) ([]submission.ListItem, error) {
	view := review.NewListView(c.conn, nil, review.WithFilter(f))
	defer view.Close()

	var items []submission.ListItem
	for {
		page, err := view.Load(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.Empty() || page.Filter.Page >= page.TotalPages {
			return items, nil
		}
		view.SetPage(page.Filter.Page + 1)
	}
}

func buildWorkbook(items []submission.ListItem) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", exportSheet); err != nil {
		book.Close()
		return nil, err
	}
	if err := book.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		book.Close()
		return nil, err
	}
	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
		_ = book.SetCellStyle(exportSheet, "A1", last, bold)
	}

	for i, item := range items {
		fd := item.FormData
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			book.Close()
			return nil, err
		}
		row := []any{
			item.ReferenceCode,
			item.CreatedAt.Local().Format("2006-01-02 15:04"),
			item.Status.Text(),
			fd.FullName,
			fd.NationalID,
			fd.Nationality,
			submission.MaritalStatus(fd.MaritalStatus).Text(),
			fd.Phone,
			fd.Email,
			fd.Qualification,
			fd.Major,
			item.FilesCount,
			item.HasSignature,
		}
		if err := book.SetSheetRow(exportSheet, cell, &row); err != nil {
			book.Close()
			return nil, err
		}
	}
	_ = book.SetColWidth(exportSheet, "A", "M", 18)
	return book, nil
}
