package curriculum

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const outlineSheet = "Curriculum"

var outlineHeaders = []string{"Week", "Week Title", "Section", "Item", "Type", "Title", "Details", "Resources"}

// ExportXLSX writes a curriculum outline workbook: one row per lesson and
// live class, grouped by week and section.
func ExportXLSX(w io.Writer, title string, weeks []Week) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(outlineSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	sw := &sheetWriter{f: f, sheet: outlineSheet}
	sw.colWidth("A", "A", 8)
	sw.colWidth("B", "C", 24)
	sw.colWidth("D", "E", 12)
	sw.colWidth("F", "H", 36)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	sw.set(1, 1, title)
	for i, h := range outlineHeaders {
		sw.set(i+1, 2, h)
	}
	sw.style(1, 2, len(outlineHeaders), 2, headerStyle)

	row := 3
	put := func(values ...any) {
		for i, v := range values {
			sw.set(i+1, row, v)
		}
		row++
	}

	for _, wk := range weeks {
		for _, s := range wk.Sections {
			if len(s.Lessons) == 0 {
				put(wk.WeekNumber, wk.Title, s.Title, "section", "", s.Title, s.Description, resourceTitles(s.Resources))
			}
			for _, l := range s.Lessons {
				put(wk.WeekNumber, wk.Title, s.Title, "lesson", string(l.Type), l.Title, lessonDetails(l), resourceTitles(l.Resources))
			}
		}
		for _, l := range wk.Lessons {
			put(wk.WeekNumber, wk.Title, "", "lesson", string(l.Type), l.Title, lessonDetails(l), resourceTitles(l.Resources))
		}
		for _, lc := range wk.LiveClasses {
			details := fmt.Sprintf("%s, %d min", lc.ScheduledDate.Format("2006-01-02 15:04"), lc.Duration)
			put(wk.WeekNumber, wk.Title, "", "live class", lc.Instructor, lc.Title, details, materialTitles(lc.Materials))
		}
		if len(wk.Sections) == 0 && len(wk.Lessons) == 0 && len(wk.LiveClasses) == 0 {
			put(wk.WeekNumber, wk.Title, "", "week", "", wk.Title, wk.Description, "")
		}
	}
	if sw.err != nil {
		return fmt.Errorf("filling outline sheet: %w", sw.err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// sheetWriter writes to one sheet and keeps the first error. Later calls
// are skipped once an error is recorded.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (s *sheetWriter) colWidth(from, to string, width float64) {
	if s.err == nil {
		s.err = s.f.SetColWidth(s.sheet, from, to, width)
	}
}

func (s *sheetWriter) set(col, row int, v any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellValue(s.sheet, cell, v)
}

func (s *sheetWriter) style(fromCol, fromRow, toCol, toRow, styleID int) {
	if s.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		s.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellStyle(s.sheet, from, to, styleID)
}

func lessonDetails(l Lesson) string {
	switch l.Type {
	case LessonVideo:
		if l.Video == nil || l.Video.URL == "" {
			return "video pending"
		}
		if l.Video.Duration != "" {
			return l.Video.URL + " (" + l.Video.Duration + ")"
		}
		return l.Video.URL
	case LessonQuiz:
		if l.Quiz != nil {
			return "quiz " + l.Quiz.QuizID
		}
	case LessonAssessment:
		if l.Assessment != nil {
			return "assignment " + l.Assessment.AssignmentID
		}
	}
	return ""
}

func resourceTitles(rs []Resource) string {
	out := ""
	for i, r := range rs {
		if i > 0 {
			out += ", "
		}
		out += r.Title
	}
	return out
}

func materialTitles(ms []Material) string {
	out := ""
	for i, m := range ms {
		if i > 0 {
			out += ", "
		}
		out += m.Title
	}
	return out
}
