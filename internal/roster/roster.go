// Package roster resolves which apprentices a user may see. The
// accessible set feeds journal access checks, the notification
// aggregator and the scheduling endpoints.
package roster

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"alteris/gateway/internal/model"
	"alteris/gateway/internal/roles"
)

// Set is the resolved apprentice visibility for one user. All entries
// are deduplicated by id and sorted for display; the followed subset
// marks apprentices the user is directly responsible for.
type Set struct {
	global    bool
	apprentis []model.Apprentice
	followed  map[string]bool
	ids       map[string]bool
}

// Build assembles the accessible set from the user's capabilities,
// their own profile and, for users who may browse everyone, the full
// roster. roster may be nil for scoped users.
func Build(caps roles.Capabilities, me *model.User, roster *model.Roster) *Set {
	s := &Set{
		global:   caps.CanBrowseAllJournals && roster != nil,
		followed: make(map[string]bool),
		ids:      make(map[string]bool),
	}

	byID := make(map[string]model.Apprentice)
	var order []string
	add := func(a model.Apprentice, follow bool) {
		if a.ID == "" {
			return
		}
		if _, seen := byID[a.ID]; !seen {
			order = append(order, a.ID)
		}
		byID[a.ID] = a
		if follow {
			s.followed[a.ID] = true
		}
	}

	if me != nil {
		for _, a := range me.Apprentices {
			add(a, true)
		}
		if caps.IsApprentice {
			add(model.Apprentice{ID: me.ID, FullName: me.FullName, Email: me.Email}, true)
		}
	}
	if s.global {
		for _, a := range roster.Apprentis {
			add(a, false)
		}
	}

	s.apprentis = make([]model.Apprentice, 0, len(order))
	for _, id := range order {
		s.apprentis = append(s.apprentis, byID[id])
		s.ids[id] = true
	}
	sortApprentices(s.apprentis)
	return s
}

// All returns the accessible apprentices in display order.
func (s *Set) All() []model.Apprentice {
	return s.apprentis
}

// Contains reports whether the apprentice is accessible at all.
func (s *Set) Contains(id string) bool {
	return s.ids[id]
}

// Follows reports whether the user is directly responsible for the
// apprentice, as opposed to seeing them through a global browse right.
func (s *Set) Follows(id string) bool {
	return s.followed[id]
}

// Global reports whether the set covers the whole roster.
func (s *Set) Global() bool {
	return s.global
}

func sortApprentices(list []model.Apprentice) {
	c := collate.New(language.French, collate.IgnoreCase)
	sort.Slice(list, func(i, j int) bool {
		if cmp := c.CompareString(list[i].FullName, list[j].FullName); cmp != 0 {
			return cmp < 0
		}
		return list[i].ID < list[j].ID
	})
}
