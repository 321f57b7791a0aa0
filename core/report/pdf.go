package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
)

const printedDateLayout = "02/01/2006 03:04 PM"

var reportColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 12, "C"},
	{"Student", 88, "L"},
	{"Score", 30, "C"},
	{"Total", 30, "C"},
	{"Percentage", 30, "C"},
}

func renderQuizReport(a QuizAnalytics, printedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(a.Quiz.Title, true)
	pdf.SetAuthor(a.Classroom.TeacherName, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(a.Classroom.Subject), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(0, 8, tr(a.Quiz.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Teacher: "+a.Classroom.TeacherName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date printed: "+printedAt.Format(printedDateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf(
		"Participants: %d    Average: %.2f    Highest: %d    Lowest: %d",
		a.Participants, a.Average, a.Highest, a.Lowest,
	), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for i, row := range a.Students {
		cells := []string{
			fmt.Sprint(i + 1),
			tr(row.StudentName),
			fmt.Sprint(row.Score),
			fmt.Sprint(row.Total),
			fmt.Sprintf("%.2f%%", row.Percentage),
		}
		for j, col := range reportColumns {
			pdf.CellFormat(col.width, 7, cells[j], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func quizReportFilename(a QuizAnalytics) string {
	return safeFilename(a.Classroom.Subject+"_"+a.Quiz.Title) + "_teacher_report.pdf"
}

// safeFilename drops the characters that would break a Content-Disposition header or a path.
func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '"', r == '/', r == '\\':
			return '_'
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, name)
}
