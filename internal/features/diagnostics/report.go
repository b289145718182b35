package diagnostics

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

// WriteText renders the report for a terminal or a log file.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Divergence report (%s, tolerance %.0f%%) generated %s\n\n",
		r.Source, r.Tolerance*100, r.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(tw, "ENTITY\tLOCAL\tREMOTE\tLOCAL ONLY\tREMOTE ONLY\tMISMATCHES")
	for _, d := range r.Entities {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			d.EntityType, d.LocalCount, d.RemoteCount, len(d.LocalOnly), len(d.RemoteOnly), len(d.Mismatches))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, d := range r.Entities {
		for _, ref := range d.LocalOnly {
			state := "missing remotely"
			if ref.Pending {
				state = "pending sync"
			}
			fmt.Fprintf(w, "  %s %s: local only (%s)\n", d.EntityType, ref.ID, state)
		}
		for _, ref := range d.RemoteOnly {
			fmt.Fprintf(w, "  %s %s: remote only\n", d.EntityType, ref.ID)
		}
		for _, m := range d.Mismatches {
			parts := make([]string, 0, len(m.Fields))
			for _, f := range m.Fields {
				parts = append(parts, fmt.Sprintf("%s local=%v remote=%v", f.Field, f.Local, f.Remote))
			}
			fmt.Fprintf(w, "  %s %s: %s\n", d.EntityType, m.ID, strings.Join(parts, ", "))
		}
	}

	if len(r.Purchases) > 0 {
		fmt.Fprintf(w, "\nPurchase totals outside tolerance: %d\n", len(r.Purchases))
		for _, p := range r.Purchases {
			fmt.Fprintf(w, "  [%s] %s: %.2f / %.2f * %.2f = %.2f, stored %.2f (diff %.2f)\n",
				p.Source, p.ID, p.QtyUnits, p.UnitsPerBox, p.UnitCost, p.Expected, p.Stored, p.Difference)
		}
	}

	if len(r.Duplicates) > 0 {
		fmt.Fprintf(w, "\nDuplicate groups: %d\n", len(r.Duplicates))
		for _, g := range r.Duplicates {
			fmt.Fprintf(w, "  %s [%s]: keep %s, delete %s\n",
				g.EntityType, g.Key, g.Original.ID(), strings.Join(g.DuplicateIDs(), ", "))
		}
	}

	if len(r.Integrity) > 0 {
		fmt.Fprintf(w, "\nQueue integrity issues: %d\n", len(r.Integrity))
		for _, issue := range r.Integrity {
			fmt.Fprintf(w, "  %s %s: %s (entries %v)\n", issue.EntityType, issue.EntityID, issue.Problem, issue.EntryIDs)
		}
	}

	if r.Clean() {
		_, err := fmt.Fprintln(w, "\nLocal and remote agree.")
		return err
	}
	return nil
}

// WriteXLSX exports the report as a workbook with one sheet per section.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	summary := [][]any{}
	var localOnly, remoteOnly, mismatches [][]any
	for _, d := range r.Entities {
		summary = append(summary, []any{string(d.EntityType), d.LocalCount, d.RemoteCount,
			len(d.LocalOnly), len(d.RemoteOnly), len(d.Mismatches)})
		for _, ref := range d.LocalOnly {
			localOnly = append(localOnly, []any{string(d.EntityType), ref.ID, yesNo(ref.Pending)})
		}
		for _, ref := range d.RemoteOnly {
			remoteOnly = append(remoteOnly, []any{string(d.EntityType), ref.ID})
		}
		for _, m := range d.Mismatches {
			for _, fd := range m.Fields {
				mismatches = append(mismatches, []any{string(d.EntityType), m.ID, fd.Field,
					fmt.Sprint(fd.Local), fmt.Sprint(fd.Remote)})
			}
		}
	}

	var purchases [][]any
	for _, p := range r.Purchases {
		purchases = append(purchases, []any{p.Source, p.ID, p.QtyUnits, p.UnitsPerBox, p.UnitCost,
			p.Expected, p.Stored, p.Difference})
	}

	var duplicates [][]any
	for _, g := range r.Duplicates {
		for _, id := range g.DuplicateIDs() {
			duplicates = append(duplicates, []any{string(g.EntityType), g.Key, g.Original.ID(), id})
		}
	}

	var integrity [][]any
	for _, issue := range r.Integrity {
		integrity = append(integrity, []any{string(issue.EntityType), issue.EntityID, issue.Problem,
			fmt.Sprint(issue.EntryIDs)})
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{"Summary", []string{"Entity", "Local", "Remote", "Local only", "Remote only", "Mismatches"}, summary},
		{"Local only", []string{"Entity", "ID", "Pending"}, localOnly},
		{"Remote only", []string{"Entity", "ID"}, remoteOnly},
		{"Mismatches", []string{"Entity", "ID", "Field", "Local", "Remote"}, mismatches},
		{"Purchases", []string{"Source", "ID", "Qty units", "Units per box", "Unit cost", "Expected", "Stored", "Difference"}, purchases},
		{"Duplicates", []string{"Entity", "Key", "Original", "Duplicate"}, duplicates},
		{"Integrity", []string{"Entity", "ID", "Problem", "Entries"}, integrity},
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return err
		}
		if err := writeSheet(f, sheet.name, sheet.header, sheet.rows, headerStyle); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet.name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	for i := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 18)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
