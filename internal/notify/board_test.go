package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/config"
	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
	"alteris/gateway/internal/roles"
	"alteris/gateway/internal/roster"
)

// The first pass blocks inside its documents fetch until a second,
// later-started pass has finished. The stale result must be discarded
// and both callers must end up seeing the fresher feed.
func TestBoardDiscardsSupersededPass(t *testing.T) {
	now := date("2025-03-14")
	arrived := make(chan struct{})
	release := make(chan struct{})
	var firstCall atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/promotions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"promotions": [{"id": "p1", "annee_academique": "2024-2025", "semesters": [{"semester_id": "s1", "name": "Semestre 1", "start_date": "2025-01-01", "end_date": "2025-07-31", "order": 1, "deliverables": []}]}]}`)
	})
	mux.HandleFunc("/apprenti/documents/a1", func(w http.ResponseWriter, r *http.Request) {
		stale := firstCall.CompareAndSwap(false, true)
		if stale {
			close(arrived)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		if stale {
			io.WriteString(w, `{"promotion": {"promotion_id": "p1"}, "semesters": [{"semester_id": "s1", "name": "Semestre 1", "documents": []}], "categories": []}`)
			return
		}
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
		UpstreamTimeout: 10 * time.Second,
	}
	cs := clients.New(cfg)
	agg := NewAggregator(cs.Apprenti, cs.Jury, planning.NewCache(cs.Admin, nil, time.Minute), nil)
	board := NewBoard(agg)

	me := &model.User{ID: "t1", Apprentices: []model.Apprentice{{ID: "a1", FullName: "Jeanne Dupont"}}}
	set := roster.Build(roles.Capabilities{}, me, nil)

	staleDone := make(chan Feed, 1)
	go func() {
		staleDone <- board.Refresh(context.Background(), "sess-1", "tok", "t1", set, now)
	}()

	<-arrived
	fresh := board.Refresh(context.Background(), "sess-1", "tok", "t1", set, now)
	if len(fresh.Items) != 1 || fresh.Items[0].ID != "document-a1-doc1" {
		t.Fatalf("unexpected fresh feed %+v", fresh.Items)
	}

	close(release)
	staleResult := <-staleDone
	if staleResult.Generation != fresh.Generation {
		t.Fatalf("expected superseded caller to get the installed feed, got generation %d want %d", staleResult.Generation, fresh.Generation)
	}
	if len(staleResult.Items) != 1 {
		t.Fatalf("expected superseded caller to see the fresher items, got %+v", staleResult.Items)
	}

	installed, ok := board.Latest("sess-1")
	if !ok || installed.Generation != fresh.Generation {
		t.Fatalf("expected fresher feed installed, got %+v ok=%v", installed, ok)
	}
}

func TestBoardDropForgetsSession(t *testing.T) {
	board := NewBoard(NewAggregator(nil, nil, nil, nil))
	board.mu.Lock()
	board.feeds["sess-1"] = Feed{Generation: 3}
	board.mu.Unlock()

	if _, ok := board.Latest("sess-1"); !ok {
		t.Fatalf("expected feed present before drop")
	}
	board.Drop("sess-1")
	if _, ok := board.Latest("sess-1"); ok {
		t.Fatalf("expected feed gone after drop")
	}
}
