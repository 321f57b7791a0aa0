package report

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/classroom"
	"github.com/trezcool/quizroom/core/quiz"
	"github.com/trezcool/quizroom/core/user"
)

const gradebookSheet = "Gradebook"

// rosterLimits caps how much an uploaded roster may inflate once unzipped.
var rosterLimits = excelize.Options{
	UnzipSizeLimit:    32 << 20,
	UnzipXMLSizeLimit: 16 << 20,
}

// renderGradebook writes one row per student and one column per quiz.
// Cells of quizzes the student did not submit are left empty.
func renderGradebook(
	c classroom.Classroom,
	students []user.User,
	quizzes []quiz.Quiz,
	scores map[string]map[string]quiz.Submission,
) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return nil, err
	}

	header := []interface{}{"Student", "Username", "Email"}
	for _, q := range quizzes {
		header = append(header, q.Title)
	}
	header = append(header, "Average %")
	if err := f.SetSheetRow(gradebookSheet, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, err
	}
	if err = f.SetCellStyle(gradebookSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}
	if err = f.SetColWidth(gradebookSheet, "A", "C", 28); err != nil {
		return nil, err
	}

	for i, student := range students {
		row := []interface{}{student.FullName(), student.Username, student.Email}
		var sum float64
		var taken int
		for _, q := range quizzes {
			sub, ok := scores[student.ID][q.ID]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, sub.Score)
			sum += sub.Percentage()
			taken++
		}
		if taken > 0 {
			row = append(row, quiz.Round2(sum/float64(taken)))
		} else {
			row = append(row, nil)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err = f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err = f.SetDocProps(&excelize.DocProperties{Title: c.Name + " gradebook", Subject: c.Subject}); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseRoster reads the usernames or emails listed in the first column of the first sheet.
// The first row is a header and blank cells are skipped.
func ParseRoster(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r, rosterLimits)
	if err != nil {
		return nil, core.NewRequestError("invalid spreadsheet")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, core.NewRequestError("the spreadsheet does not contain any sheet")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}

	res := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if val := core.CleanString(row[0], true /* lower */); val != "" {
			res = append(res, val)
		}
	}
	return res, nil
}
