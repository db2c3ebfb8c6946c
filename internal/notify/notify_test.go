package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/config"
	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
	"alteris/gateway/internal/roles"
	"alteris/gateway/internal/roster"
)

func date(value string) time.Time {
	t, ok := model.ParseDate(value)
	if !ok {
		panic("bad test date " + value)
	}
	return t
}

func indexWith(semesters ...model.Semester) *planning.Index {
	return planning.BuildIndex([]model.Promotion{{
		ID:              "p1",
		AnneeAcademique: "2024-2025",
		Semesters:       semesters,
	}})
}

func TestBundleItemsDeadlineWindows(t *testing.T) {
	now := date("2025-03-14")
	cases := []struct {
		due  string
		want string
	}{
		{"2025-02-11", ""},
		{"2025-02-12", TypeOverdue},
		{"2025-03-13", TypeOverdue},
		{"2025-03-14", TypeDeadline},
		{"2025-03-28", TypeDeadline},
		{"2025-03-29", ""},
	}
	for _, tc := range cases {
		index := indexWith(model.Semester{
			ID:        "s1",
			Name:      "Semestre 1",
			StartDate: "2025-01-01",
			EndDate:   "2025-07-31",
			Deliverables: []model.Deliverable{
				{ID: "d1", Title: "Rapport", DueDate: tc.due},
			},
		})
		bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{ID: "s1"}}}
		items := bundleItems(index, model.Apprentice{ID: "a1", FullName: "Jeanne Dupont"}, bundle, now)

		if tc.want == "" {
			if len(items) != 0 {
				t.Fatalf("due %s: expected no item, got %+v", tc.due, items)
			}
			continue
		}
		if len(items) != 1 || items[0].Type != tc.want {
			t.Fatalf("due %s: expected one %s item, got %+v", tc.due, tc.want, items)
		}
	}
}

func TestBundleItemsDocumentWindow(t *testing.T) {
	now := date("2025-03-14")
	cases := []struct {
		uploaded string
		want     bool
	}{
		{"2025-02-11", false},
		{"2025-02-12", true},
		{"2025-03-14", true},
		{"2025-04-13", true},
		{"2025-04-14", false},
	}
	for _, tc := range cases {
		index := indexWith(model.Semester{ID: "s1", StartDate: "2025-01-01", EndDate: "2025-07-31"})
		bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{
			ID: "s1",
			Documents: []model.Document{
				{ID: "doc1", FileName: "rapport.pdf", UploadedAt: tc.uploaded},
			},
		}}}
		items := bundleItems(index, model.Apprentice{ID: "a1"}, bundle, now)
		if got := len(items) == 1; got != tc.want {
			t.Fatalf("uploaded %s: expected present=%v, got %+v", tc.uploaded, tc.want, items)
		}
	}
}

func TestBundleItemsJeanneDupontScenario(t *testing.T) {
	now := date("2025-03-14")
	index := indexWith(model.Semester{
		ID:        "s1",
		Name:      "Semestre 1",
		StartDate: "2025-01-01",
		EndDate:   "2025-07-31",
		Deliverables: []model.Deliverable{
			{ID: "d1", Title: "Rapport intermediaire", DueDate: "2025-03-19"},
		},
	})
	bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{
		ID: "s1",
		Documents: []model.Document{
			{ID: "doc1", FileName: "journal.pdf", UploadedAt: "2025-03-13"},
		},
	}}}

	items := bundleItems(index, model.Apprentice{ID: "a1", FullName: "Jeanne Dupont"}, bundle, now)
	if len(items) != 2 {
		t.Fatalf("expected exactly two items, got %+v", items)
	}
	var deadlines, documents, overdues int
	for _, item := range items {
		switch item.Type {
		case TypeDeadline:
			deadlines++
			if item.Date != "2025-03-19" {
				t.Fatalf("unexpected deadline date %s", item.Date)
			}
		case TypeDocument:
			documents++
			if item.Date != "2025-03-13" {
				t.Fatalf("unexpected document date %s", item.Date)
			}
		case TypeOverdue:
			overdues++
		}
		if item.ApprentiNom != "Jeanne Dupont" {
			t.Fatalf("expected apprentice name on item, got %+v", item)
		}
	}
	if deadlines != 1 || documents != 1 || overdues != 0 {
		t.Fatalf("expected one deadline and one document, got %+v", items)
	}
}

func TestBundleItemsClosedSemesterSuppressed(t *testing.T) {
	now := date("2025-03-01")
	index := indexWith(model.Semester{
		ID:        "s1",
		StartDate: "2024-09-01",
		EndDate:   "2025-01-31",
		Deliverables: []model.Deliverable{
			{ID: "d1", Title: "Rapport", DueDate: "2025-02-20"},
		},
	})
	bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{
		ID: "s1",
		Documents: []model.Document{
			{ID: "doc1", FileName: "note.pdf", UploadedAt: "2025-02-25"},
		},
	}}}

	items := bundleItems(index, model.Apprentice{ID: "a1"}, bundle, now)
	if len(items) != 0 {
		t.Fatalf("expected closed semester to emit nothing, got %+v", items)
	}
}

func TestBundleItemsUnknownSemesterFailsOpen(t *testing.T) {
	now := date("2025-03-14")
	index := planning.BuildIndex(nil)
	bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{
		ID: "mystery",
		Documents: []model.Document{
			{ID: "doc1", FileName: "note.pdf", UploadedAt: "2025-03-10"},
		},
	}}}

	items := bundleItems(index, model.Apprentice{ID: "a1"}, bundle, now)
	if len(items) != 1 || items[0].Type != TypeDocument {
		t.Fatalf("expected document despite unknown semester, got %+v", items)
	}
}

func TestEntretienFeedItems(t *testing.T) {
	now := date("2025-03-14")
	index := indexWith(model.Semester{ID: "s1", StartDate: "2025-01-01", EndDate: "2025-07-31"})

	entretiens := []model.Entretien{
		{ID: "e1", Date: "2025-03-20T10:00:00", Sujet: "Point semestre"},
		{ID: "e2", Date: "2025-03-30", Sujet: "Trop loin"},
		{ID: "e3", Date: "2025-02-01", Sujet: "Recent"},
		{ID: "e4", Date: "2024-12-01", Sujet: "Trop ancien"},
		{ID: "e5", Date: "2025-03-20", Sujet: "Hors semestre", SemesterID: "s2"},
	}
	items := entretienFeedItems(index, model.Apprentice{ID: "a1", FullName: "Jeanne Dupont"}, entretiens, now)

	if len(items) != 3 {
		t.Fatalf("expected e1, e3 and e5, got %+v", items)
	}
	for _, item := range items {
		if item.Type != TypeEntretien {
			t.Fatalf("unexpected type %s", item.Type)
		}
		if item.ID == "entretien-a1-e2" || item.ID == "entretien-a1-e4" {
			t.Fatalf("window filter failed: %+v", item)
		}
	}
}

func TestEntretienSemesterGating(t *testing.T) {
	now := date("2025-03-14")
	index := indexWith(model.Semester{ID: "s1", StartDate: "2025-01-01", EndDate: "2025-02-28"})

	entretiens := []model.Entretien{
		{ID: "e1", Date: "2025-03-20", Sujet: "Hors fenetre", SemesterID: "s1"},
	}
	items := entretienFeedItems(index, model.Apprentice{ID: "a1"}, entretiens, now)
	if len(items) != 0 {
		t.Fatalf("expected entretien outside its semester window skipped, got %+v", items)
	}
}

func juryFixture(id, apprentiID, tuteurID, date string) model.Jury {
	return model.Jury{
		ID:                id,
		Date:              date,
		Status:            "planifie",
		SemestreReference: "S1",
		Members: model.JuryMembers{
			Tuteur:   &model.JuryMember{UserID: tuteurID, Role: "tuteur_pedagogique"},
			Apprenti: &model.JuryMember{UserID: apprentiID, Role: "apprenti", FirstName: "Jeanne", LastName: "Dupont"},
		},
	}
}

func scopedSet(apprentiIDs ...string) *roster.Set {
	me := &model.User{ID: "viewer"}
	for _, id := range apprentiIDs {
		me.Apprentices = append(me.Apprentices, model.Apprentice{ID: id, FullName: "Apprenti " + id})
	}
	return roster.Build(roles.Capabilities{}, me, nil)
}

func TestJuryFeedItemsAccessFilter(t *testing.T) {
	now := date("2025-03-14")
	index := planning.BuildIndex(nil)
	juries := []model.Jury{
		juryFixture("j1", "a1", "t9", "2025-03-20"),
		juryFixture("j2", "outsider", "t9", "2025-03-20"),
	}

	followed := scopedSet("a1")
	items := juryFeedItems(index, "viewer", followed, juries, now)
	if len(items) != 1 || items[0].ID != "jury-j1" {
		t.Fatalf("expected followed apprentice jury only, got %+v", items)
	}

	global := roster.Build(roles.Capabilities{CanBrowseAllJournals: true}, &model.User{ID: "admin"}, &model.Roster{
		Apprentis: []model.Apprentice{{ID: "a1", FullName: "Jeanne Dupont"}},
	})
	items = juryFeedItems(index, "admin", global, juries, now)
	if len(items) != 1 || items[0].ID != "jury-j1" {
		t.Fatalf("expected global browse to include accessible jury, got %+v", items)
	}
}

func TestJuryFeedItemsParticipantSlot(t *testing.T) {
	now := date("2025-03-14")
	index := planning.BuildIndex(nil)

	// The viewer supervises a1 but sits on the jury of a2 as tuteur;
	// a2 must still be accessible for the jury to surface.
	me := &model.User{ID: "t1", Apprentices: []model.Apprentice{
		{ID: "a1", FullName: "Jeanne Dupont"},
		{ID: "a2", FullName: "Karim Benali"},
	}}
	set := roster.Build(roles.Capabilities{}, me, nil)

	juries := []model.Jury{juryFixture("j1", "a2", "t1", "2025-03-20")}
	items := juryFeedItems(index, "t1", set, juries, now)
	if len(items) != 1 {
		t.Fatalf("expected participant jury visible, got %+v", items)
	}
}

func TestJuryFeedItemsWindowAndSemesterGate(t *testing.T) {
	now := date("2025-03-14")
	index := indexWith(model.Semester{ID: "s1", StartDate: "2025-01-01", EndDate: "2025-02-28"})

	tooFar := juryFixture("j1", "a1", "t9", "2025-04-01")
	gated := juryFixture("j2", "a1", "t9", "2025-03-20")
	gated.PromotionReference = &model.PromotionRef{PromotionID: "p1", SemesterID: "s1"}

	items := juryFeedItems(index, "viewer", scopedSet("a1"), []model.Jury{tooFar, gated}, now)
	if len(items) != 0 {
		t.Fatalf("expected both juries filtered, got %+v", items)
	}
}

func TestSortItemsDescendingWithStableTies(t *testing.T) {
	items := []Item{
		{ID: "b", at: date("2025-03-10")},
		{ID: "a", at: date("2025-03-10")},
		{ID: "c", at: date("2025-03-20")},
	}
	sortItems(items)
	if items[0].ID != "c" || items[1].ID != "a" || items[2].ID != "b" {
		t.Fatalf("unexpected order %+v", items)
	}
}

func TestAggregatorFeedIsolatesFailures(t *testing.T) {
	now := date("2025-03-14")
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/promotions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"promotions": [{"id": "p1", "annee_academique": "2024-2025", "semesters": [{"semester_id": "s1", "name": "Semestre 1", "start_date": "2025-01-01", "end_date": "2025-07-31", "order": 1, "deliverables": [{"deliverable_id": "d1", "title": "Rapport", "due_date": "2025-03-19", "order": 1}]}]}]}`)
	})
	mux.HandleFunc("/apprenti/documents/a1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "indisponible"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("/apprenti/documents/a2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"promotion": {"promotion_id": "p1"}, "semesters": [{"semester_id": "s1", "name": "Semestre 1", "documents": []}], "categories": []}`)
	})
	mux.HandleFunc("/apprenti/entretiens/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"entretiens": []}`)
	})
	mux.HandleFunc("/jury/juries", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Config{
		AdminBaseURL:    srv.URL,
		ApprentiBaseURL: srv.URL,
		JuryBaseURL:     srv.URL,
		AuthBaseURL:     srv.URL,
		UpstreamTimeout: 5 * time.Second,
	}
	cs := clients.New(cfg)
	cache := planning.NewCache(cs.Admin, nil, time.Minute)
	agg := NewAggregator(cs.Apprenti, cs.Jury, cache, nil)

	me := &model.User{ID: "t1", Apprentices: []model.Apprentice{
		{ID: "a1", FullName: "Jeanne Dupont"},
		{ID: "a2", FullName: "Karim Benali"},
	}}
	set := roster.Build(roles.Capabilities{}, me, nil)

	feed := agg.Feed(context.Background(), "tok", "t1", set, now)
	if len(feed.Items) != 1 {
		t.Fatalf("expected a2 deadline despite a1 failure, got %+v", feed.Items)
	}
	if feed.Items[0].ID != "deadline-a2-d1" {
		t.Fatalf("unexpected item %+v", feed.Items[0])
	}

	second := agg.Feed(context.Background(), "tok", "t1", set, now)
	if second.Generation <= feed.Generation {
		t.Fatalf("expected generation to increase, got %d then %d", feed.Generation, second.Generation)
	}
}

func TestAggregatorFeedSurvivesPromotionOutage(t *testing.T) {
	now := date("2025-03-14")
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/promotions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "admin down"}`, http.StatusBadGateway)
	})
	mux.HandleFunc("/apprenti/documents/a1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"promotion": {"promotion_id": "p1"}, "semesters": [{"semester_id": "s1", "name": "Semestre 1", "documents": [{"id": "doc1", "semester_id": "s1", "category": "rapport", "file_name": "journal.pdf", "file_size": 10, "file_type": "application/pdf", "uploaded_at": "2025-03-13", "uploader_id": "a1", "uploader_name": "Jeanne Dupont", "uploader_role": "apprenti", "download_url": "", "comments": []}], "documents_count": 1}], "categories": []}`)
	})
	mux.HandleFunc("/apprenti/entretiens/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"entretiens": []}`)
	})
	mux.HandleFunc("/jury/juries", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Config{
		AdminBaseURL:    srv.URL,
		ApprentiBaseURL: srv.URL,
		JuryBaseURL:     srv.URL,
		AuthBaseURL:     srv.URL,
		UpstreamTimeout: 5 * time.Second,
	}
	cs := clients.New(cfg)
	agg := NewAggregator(cs.Apprenti, cs.Jury, planning.NewCache(cs.Admin, nil, time.Minute), nil)

	me := &model.User{ID: "a1", Email: "jeanne.dupont@alteris.fr", FullName: "Jeanne Dupont"}
	set := roster.Build(roles.Capabilities{IsApprentice: true}, me, nil)

	feed := agg.Feed(context.Background(), "tok", "a1", set, now)
	if len(feed.Items) != 1 || feed.Items[0].Type != TypeDocument {
		t.Fatalf("expected document item with open windows, got %+v", feed.Items)
	}
}

func TestFeedDeterministicAcrossPasses(t *testing.T) {
	now := date("2025-03-14")
	index := indexWith(model.Semester{
		ID:        "s1",
		StartDate: "2025-01-01",
		EndDate:   "2025-07-31",
		Deliverables: []model.Deliverable{
			{ID: "d1", Title: "Rapport", DueDate: "2025-03-19"},
			{ID: "d2", Title: "Soutenance", DueDate: "2025-03-19"},
		},
	})
	bundle := &model.DocumentBundle{Semesters: []model.SemesterDocuments{{ID: "s1"}}}

	first := bundleItems(index, model.Apprentice{ID: "a1"}, bundle, now)
	second := bundleItems(index, model.Apprentice{ID: "a1"}, bundle, now)
	sortItems(first)
	sortItems(second)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two items each pass")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("expected identical order across passes, got %v vs %v", first[i].ID, second[i].ID)
		}
	}

	ids := fmt.Sprintf("%s,%s", first[0].ID, first[1].ID)
	if ids != "deadline-a1-d1,deadline-a1-d2" {
		t.Fatalf("expected id tiebreak on equal dates, got %s", ids)
	}
}
