// Package notify derives the notification feed. Items are computed
// from upstream state on every pass and never persisted; a feed is a
// point-in-time snapshot stamped with a generation counter so callers
// can discard results from superseded passes.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
	"alteris/gateway/internal/roster"
)

const (
	TypeDocument  = "document"
	TypeDeadline  = "deadline"
	TypeOverdue   = "overdue"
	TypeEntretien = "entretien"
	TypeJury      = "jury"
)

const (
	upcomingDays = 14
	trailingDays = 30
	documentDays = 30
)

// maxFetches bounds the per-apprentice fan-out.
const maxFetches = 8

// Item is one feed entry. Date keeps the source's wire format so the
// browser can format it; ordering uses the parsed instant.
type Item struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Date        string `json:"date"`
	ApprentiID  string `json:"apprenti_id,omitempty"`
	ApprentiNom string `json:"apprenti_nom,omitempty"`

	at time.Time
}

// Feed is one aggregation pass over every accessible apprentice.
type Feed struct {
	Generation  uint64 `json:"generation"`
	GeneratedAt string `json:"generated_at"`
	Items       []Item `json:"items"`
}

// Aggregator fans out to the apprenti and jury services and merges
// the results into a sorted feed. Any single fetch failing yields an
// empty contribution, never an aborted pass.
type Aggregator struct {
	apprenti *clients.ApprentiClient
	jury     *clients.JuryClient
	cache    *planning.Cache
	logger   *zap.Logger

	gen atomic.Uint64
}

func NewAggregator(apprenti *clients.ApprentiClient, jury *clients.JuryClient, cache *planning.Cache, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{apprenti: apprenti, jury: jury, cache: cache, logger: logger}
}

// Feed aggregates notifications for one user. viewerID is the caller's
// user id, used for the jury participant check; set is their resolved
// apprentice visibility. The generation is stamped when the pass
// starts, so of two overlapping passes the later start always carries
// the higher number whatever order they finish in.
func (a *Aggregator) Feed(ctx context.Context, token, viewerID string, set *roster.Set, now time.Time) Feed {
	gen := a.gen.Add(1)

	index, err := a.cache.Index(ctx, token)
	if err != nil {
		a.logger.Warn("promotion lookup failed, windows treated as open", zap.Error(err))
		index = planning.BuildIndex(nil)
	}

	apprentis := set.All()
	docItems := make([][]Item, len(apprentis))
	entretienItems := make([][]Item, len(apprentis))
	var juryItems []Item

	var g errgroup.Group
	g.SetLimit(maxFetches)
	for i, ap := range apprentis {
		i, ap := i, ap
		g.Go(func() error {
			bundle, err := a.apprenti.Documents(ctx, token, ap.ID)
			if err != nil {
				a.logger.Warn("documents fetch failed", zap.String("apprenti_id", ap.ID), zap.Error(err))
				return nil
			}
			docItems[i] = bundleItems(index, ap, bundle, now)
			return nil
		})
		g.Go(func() error {
			entretiens, err := a.apprenti.Entretiens(ctx, token, ap.ID)
			if err != nil {
				a.logger.Warn("entretiens fetch failed", zap.String("apprenti_id", ap.ID), zap.Error(err))
				return nil
			}
			entretienItems[i] = entretienFeedItems(index, ap, entretiens, now)
			return nil
		})
	}
	g.Go(func() error {
		juries, err := a.jury.Juries(ctx, token)
		if err != nil {
			a.logger.Warn("juries fetch failed", zap.Error(err))
			return nil
		}
		juryItems = juryFeedItems(index, viewerID, set, juries, now)
		return nil
	})
	_ = g.Wait()

	var items []Item
	for i := range apprentis {
		items = append(items, docItems[i]...)
		items = append(items, entretienItems[i]...)
	}
	items = append(items, juryItems...)
	sortItems(items)

	return Feed{
		Generation:  gen,
		GeneratedAt: now.Format(time.RFC3339),
		Items:       items,
	}
}

func bundleItems(index *planning.Index, ap model.Apprentice, bundle *model.DocumentBundle, now time.Time) []Item {
	var items []Item
	for _, sem := range bundle.Semesters {
		info, _ := index.Semester(sem.ID)
		if !info.Window.Contains(now) {
			continue
		}
		for _, d := range info.Deliverables {
			due, ok := model.ParseDate(d.DueDate)
			if !ok {
				continue
			}
			days := model.DaysBetween(now, due)
			switch {
			case days >= 0 && days <= upcomingDays:
				items = append(items, Item{
					ID:          "deadline-" + ap.ID + "-" + d.ID,
					Type:        TypeDeadline,
					Title:       d.Title,
					Message:     fmt.Sprintf("Livrable a rendre pour le %s", d.DueDate),
					Date:        d.DueDate,
					ApprentiID:  ap.ID,
					ApprentiNom: ap.FullName,
					at:          due,
				})
			case days >= -trailingDays && days < 0:
				items = append(items, Item{
					ID:          "overdue-" + ap.ID + "-" + d.ID,
					Type:        TypeOverdue,
					Title:       d.Title,
					Message:     fmt.Sprintf("Livrable en retard depuis le %s", d.DueDate),
					Date:        d.DueDate,
					ApprentiID:  ap.ID,
					ApprentiNom: ap.FullName,
					at:          due,
				})
			}
		}
		for _, doc := range sem.Documents {
			uploaded, ok := model.ParseDate(doc.UploadedAt)
			if !ok {
				continue
			}
			days := model.DaysBetween(now, uploaded)
			if days < -documentDays || days > documentDays {
				continue
			}
			items = append(items, Item{
				ID:          "document-" + ap.ID + "-" + doc.ID,
				Type:        TypeDocument,
				Title:       doc.FileName,
				Message:     fmt.Sprintf("Document depose le %s", doc.UploadedAt),
				Date:        doc.UploadedAt,
				ApprentiID:  ap.ID,
				ApprentiNom: ap.FullName,
				at:          uploaded,
			})
		}
	}
	return items
}

func entretienFeedItems(index *planning.Index, ap model.Apprentice, entretiens []model.Entretien, now time.Time) []Item {
	var items []Item
	for _, e := range entretiens {
		at, ok := model.ParseDate(e.Date)
		if !ok {
			continue
		}
		days := model.DaysBetween(now, at)
		if days < -trailingDays || days > upcomingDays {
			continue
		}
		if e.SemesterID != "" && !index.SemesterWindow(e.SemesterID).Contains(at) {
			continue
		}
		items = append(items, Item{
			ID:          "entretien-" + ap.ID + "-" + e.ID,
			Type:        TypeEntretien,
			Title:       e.Sujet,
			Message:     fmt.Sprintf("Entretien le %s", e.Date),
			Date:        e.Date,
			ApprentiID:  ap.ID,
			ApprentiNom: ap.FullName,
			at:          at,
		})
	}
	return items
}

func juryFeedItems(index *planning.Index, viewerID string, set *roster.Set, juries []model.Jury, now time.Time) []Item {
	var items []Item
	for _, j := range juries {
		if !JuryVisible(j, viewerID, set) {
			continue
		}
		member := j.Members.Apprenti
		at, ok := model.ParseDate(j.Date)
		if !ok {
			continue
		}
		days := model.DaysBetween(now, at)
		if days < -trailingDays || days > upcomingDays {
			continue
		}
		if ref := j.PromotionReference; ref != nil {
			if !index.PromotionSemesterWindow(ref.PromotionID, ref.SemesterID).Contains(at) {
				continue
			}
		}
		title := "Jury"
		if j.SemestreReference != "" {
			title = "Jury " + j.SemestreReference
		}
		items = append(items, Item{
			ID:          "jury-" + j.ID,
			Type:        TypeJury,
			Title:       title,
			Message:     fmt.Sprintf("Passage de jury le %s", j.Date),
			Date:        j.Date,
			ApprentiID:  member.UserID,
			ApprentiNom: memberName(member),
			at:          at,
		})
	}
	return items
}

// JuryVisible reports whether a jury belongs in the viewer's feed and
// listings: the apprentice must be in the accessible set, and viewers
// without global visibility must either sit on the panel or follow the
// apprentice directly.
func JuryVisible(j model.Jury, viewerID string, set *roster.Set) bool {
	member := j.Members.Apprenti
	if member == nil || !set.Contains(member.UserID) {
		return false
	}
	if set.Global() || set.Follows(member.UserID) {
		return true
	}
	return isParticipant(j, viewerID)
}

func isParticipant(j model.Jury, viewerID string) bool {
	if viewerID == "" {
		return false
	}
	for _, m := range []*model.JuryMember{j.Members.Tuteur, j.Members.Professeur, j.Members.Intervenant} {
		if m != nil && m.UserID == viewerID {
			return true
		}
	}
	return false
}

func memberName(m *model.JuryMember) string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// sortItems orders by descending date, then id, so equal-date items
// keep a stable order across passes.
func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].at.Equal(items[j].at) {
			return items[i].at.After(items[j].at)
		}
		return items[i].ID < items[j].ID
	})
}
