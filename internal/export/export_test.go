package export

import (
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
)

func testIndex() *planning.Index {
	return planning.BuildIndex([]model.Promotion{{
		ID:              "p1",
		AnneeAcademique: "2024-2025",
		Semesters: []model.Semester{
			{ID: "s1", Name: "Semestre 1", StartDate: "2025-01-01", EndDate: "2025-07-31"},
		},
	}})
}

func sampleJury(id, date, apprenti string) model.Jury {
	return model.Jury{
		ID:                id,
		Date:              date,
		Status:            "planifie",
		SemestreReference: "S1",
		PromotionReference: &model.PromotionRef{
			PromotionID: "p1",
			SemesterID:  "s1",
		},
		Members: model.JuryMembers{
			Apprenti: &model.JuryMember{UserID: "a-" + id, FirstName: apprenti, LastName: "Dupont"},
			Tuteur:   &model.JuryMember{UserID: "t1", FirstName: "Paul", LastName: "Martin"},
		},
	}
}

func TestJuryWorkbookRowsInDateOrder(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	juries := []model.Jury{
		sampleJury("j2", "2025-04-10T09:00:00", "Karim"),
		sampleJury("j1", "2025-03-20T14:00:00", "Jeanne"),
	}

	buf, filename, err := JuryWorkbook(juries, testIndex(), now)
	if err != nil {
		t.Fatalf("workbook error: %v", err)
	}
	if filename != "jurys_2025-03-14.xlsx" {
		t.Fatalf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(sheetName, "A1"); got != "Date" {
		t.Fatalf("unexpected header cell %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "A2"); got != "2025-03-20T14:00:00" {
		t.Fatalf("expected earliest jury first, got %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "E2"); got != "Jeanne Dupont" {
		t.Fatalf("unexpected apprentice cell %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "C3"); got != "2024-2025" {
		t.Fatalf("expected promotion resolved from timeline, got %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "D3"); got != "S1" {
		t.Fatalf("unexpected semester cell %q", got)
	}
}

func TestJuryWorkbookEmptyStillRenders(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	buf, _, err := JuryWorkbook(nil, planning.BuildIndex(nil), now)
	if err != nil {
		t.Fatalf("workbook error: %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue(sheetName, "H1"); got != "Intervenant" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestCalendarSerializesEvents(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	entretiens := []model.Entretien{
		{ID: "e1", Date: "2025-03-20T10:00:00", Sujet: "Point semestre", ApprentiNom: "Jeanne Dupont"},
		{ID: "e2", Date: "pas-une-date", Sujet: "Ignore"},
	}
	juries := []model.Jury{sampleJury("j1", "2025-03-25T09:00:00", "Jeanne")}

	out := Calendar("Alteris - Jeanne Dupont", entretiens, juries, now)

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"UID:entretien-e1@alteris",
		"SUMMARY:Entretien : Point semestre",
		"UID:jury-j1@alteris",
		"SUMMARY:Passage de jury S1",
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("calendar missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "e2@alteris") {
		t.Fatalf("expected unparseable entretien skipped:\n%s", out)
	}
}
