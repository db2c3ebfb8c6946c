// Package planning indexes promotion timelines. Semester windows gate
// notification items and scheduling; a window whose bounds cannot be
// resolved is treated as open so that bad reference data never hides
// records.
package planning

import (
	"time"

	"alteris/gateway/internal/model"
)

// Window is a semester date span at day granularity. A missing bound
// leaves that side open.
type Window struct {
	Start    time.Time
	End      time.Time
	HasStart bool
	HasEnd   bool
}

// Contains reports whether the instant falls inside the window,
// comparing against the start of the first day and the end of the
// last.
func (w Window) Contains(t time.Time) bool {
	if w.HasStart && t.Before(model.StartOfDay(w.Start)) {
		return false
	}
	if w.HasEnd && t.After(model.EndOfDay(w.End)) {
		return false
	}
	return true
}

// SemesterInfo ties a semester to its promotion, resolved window and
// deliverable schedule.
type SemesterInfo struct {
	PromotionID     string
	AnneeAcademique string
	Name            string
	Window          Window
	Deliverables    []model.Deliverable
}

// Index resolves semester ids to their windows across all promotions.
type Index struct {
	semesters  map[string]SemesterInfo
	promotions []model.Promotion
}

func BuildIndex(promotions []model.Promotion) *Index {
	x := &Index{
		semesters:  make(map[string]SemesterInfo),
		promotions: promotions,
	}
	for _, promo := range promotions {
		for _, sem := range promo.Semesters {
			if sem.ID == "" {
				continue
			}
			x.semesters[sem.ID] = SemesterInfo{
				PromotionID:     promo.ID,
				AnneeAcademique: promo.AnneeAcademique,
				Name:            sem.Name,
				Window:          windowOf(sem),
				Deliverables:    sem.Deliverables,
			}
		}
	}
	return x
}

func windowOf(sem model.Semester) Window {
	var w Window
	if start, ok := model.ParseDate(sem.StartDate); ok {
		w.Start, w.HasStart = start, true
	}
	if end, ok := model.ParseDate(sem.EndDate); ok {
		w.End, w.HasEnd = end, true
	}
	return w
}

// Promotions returns the indexed promotions in fetch order.
func (x *Index) Promotions() []model.Promotion {
	return x.promotions
}

// Semester returns the semester record when the id is known.
func (x *Index) Semester(id string) (SemesterInfo, bool) {
	info, ok := x.semesters[id]
	return info, ok
}

// SemesterWindow returns the semester's window, or an open window for
// an unknown id.
func (x *Index) SemesterWindow(id string) Window {
	return x.semesters[id].Window
}

// PromotionSemesterWindow returns the window of a semester scoped to a
// promotion. A semester that is unknown, or that belongs to a
// different promotion, yields an open window.
func (x *Index) PromotionSemesterWindow(promotionID, semesterID string) Window {
	info, ok := x.semesters[semesterID]
	if !ok {
		return Window{}
	}
	if promotionID != "" && info.PromotionID != "" && info.PromotionID != promotionID {
		return Window{}
	}
	return info.Window
}
