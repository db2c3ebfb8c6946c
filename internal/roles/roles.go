// Package roles turns the free-text role labels carried by user
// records into a closed set of role kinds and capability flags. Raw
// labels are inconsistently cased, accented and suffixed across the
// platform ("apprenti", "Apprentis", "Maître d'apprentissage", ...),
// so fuzzy matching happens here and only here. Code downstream works
// with Kind values and Capabilities, never with raw strings.
package roles

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"alteris/gateway/internal/model"
)

type Kind string

const (
	Apprenti          Kind = "apprenti"
	Tuteur            Kind = "tuteur"
	Maitre            Kind = "maitre"
	Coordinatrice     Kind = "coordinatrice"
	ResponsableCursus Kind = "responsable_cursus"
	Professeur        Kind = "professeur"
	Intervenant       Kind = "intervenant"
	Entreprise        Kind = "entreprise"
	Ecole             Kind = "ecole"
	Administrateur    Kind = "administrateur"
	Unknown           Kind = ""
)

// aliasTable maps substrings of folded role labels to kinds. Order
// matters: "maitre_apprentissage" and "coordinatrice d'apprentissage"
// both contain "apprenti", so the supervisor entries must win before
// the apprentice entry is tried.
var aliasTable = []struct {
	token string
	kind  Kind
}{
	{"coordinatrice", Coordinatrice},
	{"coordonatrice", Coordinatrice},
	{"responsable", ResponsableCursus},
	{"admin", Administrateur},
	{"maitre", Maitre},
	{"tuteur", Tuteur},
	{"intervenant", Intervenant},
	{"professeur", Professeur},
	{"jury", Professeur},
	{"entreprise", Entreprise},
	{"ecole", Ecole},
	{"apprenti", Apprenti},
	{"alternant", Apprenti},
}

// Permission strings that grant the global browsing surface on their
// own, independent of the role label.
const (
	PermUserManage      = "user:manage"
	PermPromotionManage = "promotion:manage"
)

var privilegedKinds = map[Kind]bool{
	Administrateur:    true,
	Coordinatrice:     true,
	ResponsableCursus: true,
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases a label and strips diacritics, the same reduction
// the platform applies before comparing names.
func Fold(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	folded, _, err := transform.String(foldTransformer, lowered)
	if err != nil {
		return lowered
	}
	return folded
}

// ResolveKind maps one raw role label to its kind, Unknown when no
// alias matches.
func ResolveKind(raw string) Kind {
	folded := Fold(raw)
	if folded == "" {
		return Unknown
	}
	for _, alias := range aliasTable {
		if strings.Contains(folded, alias.token) {
			return alias.kind
		}
	}
	return Unknown
}

// Capabilities is the normalized view of what a user may see and do.
// The zero value (no user) grants nothing.
type Capabilities struct {
	Tokens []string
	Kinds  map[Kind]bool

	IsApprentice         bool
	CanBrowseAllJournals bool
	CanManageJuries      bool
	SeesGlobalFeed       bool
	CanApprove           bool
	CanEditCompetencies  bool
}

func (c Capabilities) Has(kind Kind) bool {
	return c.Kinds[kind]
}

// Resolve derives capabilities from a user record. Pure: callers must
// re-run it whenever the record is replaced.
func Resolve(user *model.User) Capabilities {
	if user == nil {
		return Capabilities{}
	}

	caps := Capabilities{Kinds: make(map[Kind]bool)}
	seen := make(map[string]bool)
	collect := func(raw string) {
		folded := Fold(raw)
		if folded == "" || seen[folded] {
			return
		}
		seen[folded] = true
		caps.Tokens = append(caps.Tokens, folded)
		if kind := ResolveKind(raw); kind != Unknown {
			caps.Kinds[kind] = true
		}
	}
	collect(user.Role)
	collect(user.RoleLabel)
	for _, label := range user.Roles {
		collect(label)
	}

	privileged := false
	for kind := range caps.Kinds {
		if privilegedKinds[kind] {
			privileged = true
			break
		}
	}
	if !privileged {
		for _, perm := range user.Perms {
			if perm == PermUserManage || perm == PermPromotionManage {
				privileged = true
				break
			}
		}
	}

	caps.IsApprentice = caps.Kinds[Apprenti]
	caps.CanBrowseAllJournals = privileged
	caps.CanManageJuries = privileged
	caps.SeesGlobalFeed = privileged
	caps.CanApprove = caps.Kinds[Tuteur]
	caps.CanEditCompetencies = caps.Kinds[Maitre]
	return caps
}
