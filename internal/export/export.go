// Package export renders planning data into downloadable formats: the
// jury schedule as an XLSX workbook and a per-user iCal feed of
// entretiens and jury passages.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
)

const sheetName = "Jurys"

// JuryWorkbook renders the jury sessions as a spreadsheet, one row per
// session in date order. Sessions with an unparseable date sort last.
func JuryWorkbook(juries []model.Jury, index *planning.Index, now time.Time) (*bytes.Buffer, string, error) {
	type row struct {
		jury   model.Jury
		at     time.Time
		parsed bool
	}
	rows := make([]row, 0, len(juries))
	for _, j := range juries {
		at, ok := model.ParseDate(j.Date)
		rows = append(rows, row{jury: j, at: at, parsed: ok})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].parsed != rows[j].parsed {
			return rows[i].parsed
		}
		if !rows[i].at.Equal(rows[j].at) {
			return rows[i].at.Before(rows[j].at)
		}
		return rows[i].jury.ID < rows[j].jury.ID
	})

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	widths := []float64{20, 12, 16, 16, 24, 24, 24, 24}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"Date", "Statut", "Promotion", "Semestre", "Apprenti", "Tuteur", "Professeur", "Intervenant"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, r := range rows {
		j := r.jury
		promoLabel, semesterLabel := timelineLabels(j, index)
		line := i + 2
		f.SetCellValue(sheetName, cell("A", line), j.Date)
		f.SetCellValue(sheetName, cell("B", line), j.Status)
		f.SetCellValue(sheetName, cell("C", line), promoLabel)
		f.SetCellValue(sheetName, cell("D", line), semesterLabel)
		f.SetCellValue(sheetName, cell("E", line), memberLabel(j.Members.Apprenti))
		f.SetCellValue(sheetName, cell("F", line), memberLabel(j.Members.Tuteur))
		f.SetCellValue(sheetName, cell("G", line), memberLabel(j.Members.Professeur))
		f.SetCellValue(sheetName, cell("H", line), memberLabel(j.Members.Intervenant))
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("jurys_%s.xlsx", now.Format("2006-01-02"))
	return buf, filename, nil
}

func timelineLabels(j model.Jury, index *planning.Index) (string, string) {
	promo := ""
	semester := j.SemestreReference
	if ref := j.PromotionReference; ref != nil {
		promo = ref.Label
		if promo == "" {
			promo = ref.AnneeAcademique
		}
		if ref.SemesterName != "" {
			semester = ref.SemesterName
		}
		if info, ok := index.Semester(ref.SemesterID); ok {
			if promo == "" {
				promo = info.AnneeAcademique
			}
			if semester == "" {
				semester = info.Name
			}
		}
	}
	return promo, semester
}

func memberLabel(m *model.JuryMember) string {
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		name = m.Email
	}
	if name == "" {
		name = m.UserID
	}
	return name
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

const eventDuration = time.Hour

// Calendar renders the user's entretiens and jury passages as an iCal
// feed. Records whose date cannot be parsed are skipped.
func Calendar(name string, entretiens []model.Entretien, juries []model.Jury, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Alteris//Gateway//FR")
	cal.SetXWRCalName(name)

	for _, e := range entretiens {
		at, ok := model.ParseDate(e.Date)
		if !ok {
			continue
		}
		evt := cal.AddEvent("entretien-" + e.ID + "@alteris")
		evt.SetDtStampTime(now)
		evt.SetStartAt(at)
		evt.SetEndAt(at.Add(eventDuration))
		summary := "Entretien"
		if e.Sujet != "" {
			summary = "Entretien : " + e.Sujet
		}
		evt.SetSummary(summary)
		if e.ApprentiNom != "" {
			evt.SetDescription("Apprenti : " + e.ApprentiNom)
		}
	}

	for _, j := range juries {
		at, ok := model.ParseDate(j.Date)
		if !ok {
			continue
		}
		evt := cal.AddEvent("jury-" + j.ID + "@alteris")
		evt.SetDtStampTime(now)
		evt.SetStartAt(at)
		evt.SetEndAt(at.Add(eventDuration))
		summary := "Passage de jury"
		if j.SemestreReference != "" {
			summary += " " + j.SemestreReference
		}
		evt.SetSummary(summary)
		if ap := j.Members.Apprenti; ap != nil {
			evt.SetDescription("Apprenti : " + memberLabel(ap))
		}
	}

	return cal.Serialize()
}
