// Package entretien holds the scheduling guard and the two-party
// approval logic for apprentice interviews. Scheduling requests are
// checked against the promotion calendar before anything is sent
// upstream, and the shared approval status is always derived from the
// two party votes rather than stored.
package entretien

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"alteris/gateway/internal/model"
	"alteris/gateway/internal/planning"
)

// Party votes. Anything unknown reads as en attente.
const (
	StatutEnAttente = "en_attente"
	StatutAccepte   = "accepte"
	StatutRefuse    = "refuse"
)

// Voting parties.
const (
	RoleTuteur = "tuteur"
	RoleMaitre = "maitre"
)

// Rejection codes returned by Check.
const (
	CodeMissingFields   = "missing_fields"
	CodeInvalidDate     = "invalid_date"
	CodeSemesterUnknown = "semester_window_unknown"
	CodeOutsideSemester = "date_outside_semester"
	CodeAlreadyPlanned  = "entretien_exists"
)

// NormalizeStatut folds a stored vote onto the three known values.
func NormalizeStatut(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StatutAccepte:
		return StatutAccepte
	case StatutRefuse:
		return StatutRefuse
	default:
		return StatutEnAttente
	}
}

// ValidStatut reports whether raw names a vote a party may set.
func ValidStatut(raw string) bool {
	switch raw {
	case StatutEnAttente, StatutAccepte, StatutRefuse:
		return true
	}
	return false
}

// ValidRole reports whether raw names a voting party.
func ValidRole(raw string) bool {
	return raw == RoleTuteur || raw == RoleMaitre
}

// Overall derives the shared status from the party votes. A refusal by
// either side wins; acceptance needs both; everything else stays
// pending.
func Overall(tuteur, maitre string) string {
	t, m := NormalizeStatut(tuteur), NormalizeStatut(maitre)
	switch {
	case t == StatutRefuse || m == StatutRefuse:
		return StatutRefuse
	case t == StatutAccepte && m == StatutAccepte:
		return StatutAccepte
	default:
		return StatutEnAttente
	}
}

// OverallOf derives the shared status from the votes embedded in the
// record. A missing party block counts as a pending vote.
func OverallOf(e *model.Entretien) string {
	var tuteur, maitre string
	if e != nil {
		if e.Tuteur != nil {
			tuteur = e.Tuteur.Statut
		}
		if e.Maitre != nil {
			maitre = e.Maitre.Statut
		}
	}
	return Overall(tuteur, maitre)
}

// ApplyVote writes one party's vote onto the record and returns the
// recomputed shared status. Votes are re-settable; the latest write
// wins.
func ApplyVote(e *model.Entretien, role, statut string) (string, error) {
	if !ValidRole(role) {
		return "", fmt.Errorf("unknown party %q", role)
	}
	if !ValidStatut(statut) {
		return "", fmt.Errorf("unknown statut %q", statut)
	}
	switch role {
	case RoleTuteur:
		if e.Tuteur == nil {
			e.Tuteur = &model.EntretienParty{}
		}
		e.Tuteur.Statut = statut
	case RoleMaitre:
		if e.Maitre == nil {
			e.Maitre = &model.EntretienParty{}
		}
		e.Maitre.Statut = statut
	}
	return OverallOf(e), nil
}

// ScheduleRequest is the gateway-side scheduling payload. It maps onto
// the apprenti service creation call once validated.
type ScheduleRequest struct {
	ApprentiID string `json:"apprenti_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Sujet      string `json:"sujet" validate:"required"`
}

// Upstream converts the validated request into the service payload.
func (r ScheduleRequest) Upstream() model.EntretienCreateRequest {
	return model.EntretienCreateRequest{
		ApprentiID: r.ApprentiID,
		Date:       r.Date,
		Sujet:      r.Sujet,
		SemesterID: r.SemesterID,
	}
}

// ValidationError is a local scheduling rejection. When one is
// returned, no creation call was made upstream.
type ValidationError struct {
	Code  string
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Code + " (" + e.Field + ")"
	}
	return e.Code
}

// Validator checks scheduling requests against the promotion calendar
// and the apprentice's existing entretiens.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	// Report json field names instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate}
}

// Struct exposes the tag validation for other request payloads.
func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

// Check applies the scheduling rules: every field present, a parseable
// date, a semester resolving to a window with both bounds, the date
// inside that window, and no existing entretien on the same semester.
// existing is the target apprentice's current list.
func (v *Validator) Check(req ScheduleRequest, index *planning.Index, existing []model.Entretien) error {
	if err := v.validate.Struct(req); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return &ValidationError{Code: CodeMissingFields, Field: fields[0].Field()}
		}
		return &ValidationError{Code: CodeMissingFields}
	}

	at, ok := model.ParseDate(req.Date)
	if !ok {
		return &ValidationError{Code: CodeInvalidDate, Field: "date"}
	}

	info, found := index.Semester(req.SemesterID)
	if !found || !info.Window.HasStart || !info.Window.HasEnd {
		return &ValidationError{Code: CodeSemesterUnknown, Field: "semester_id"}
	}
	if at.Before(model.StartOfDay(info.Window.Start)) || at.After(model.EndOfDay(info.Window.End)) {
		return &ValidationError{Code: CodeOutsideSemester, Field: "date"}
	}

	for _, e := range existing {
		if e.SemesterID == req.SemesterID {
			return &ValidationError{Code: CodeAlreadyPlanned}
		}
	}
	return nil
}
