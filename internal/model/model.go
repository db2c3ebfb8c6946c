// Package model holds the JSON shapes exchanged with the Alteris
// backend services (auth, admin, apprenti, jury). Field names follow
// the wire format of those services, which mixes camelCase and
// snake_case depending on the emitting service. Date fields stay
// strings on the wire; see ParseDate for the tolerant conversion.
package model

// User is the profile payload ("me") returned by the auth service on
// login and profile fetches.
type User struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	FullName        string       `json:"fullName"`
	Roles           []string     `json:"roles,omitempty"`
	RoleLabel       string       `json:"roleLabel,omitempty"`
	Role            string       `json:"role,omitempty"`
	Perms           []string     `json:"perms,omitempty"`
	FirstName       string       `json:"firstName,omitempty"`
	LastName        string       `json:"lastName,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	AnneeAcademique string       `json:"anneeAcademique,omitempty"`
	Apprentices     []Apprentice `json:"apprentices,omitempty"`
}

// UpdateMeRequest carries the self-service profile changes accepted by
// the auth service.
type UpdateMeRequest struct {
	Email           string `json:"email,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

// LoginResult is the auth service reply to a credential check.
type LoginResult struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Me          User   `json:"me"`
}

// Apprentice is the summary row used in rosters, supervised lists and
// notification items.
type Apprentice struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
}

// Journal is the composite per-apprentice payload served by the
// apprenti service (profile, company, school and tutor contacts).
// The nested blocks are passed through untouched.
type Journal struct {
	ID                  string         `json:"id"`
	Email               string         `json:"email"`
	FullName            string         `json:"fullName"`
	Profile             map[string]any `json:"profile,omitempty"`
	Company             map[string]any `json:"company,omitempty"`
	School              map[string]any `json:"school,omitempty"`
	Tutors              map[string]any `json:"tutors,omitempty"`
	JournalHeroImageURL string         `json:"journalHeroImageUrl,omitempty"`
}

// Promotion is a cohort with its semester timeline, served by the
// admin service.
type Promotion struct {
	ID              string     `json:"id"`
	AnneeAcademique string     `json:"annee_academique"`
	Label           string     `json:"label,omitempty"`
	NbApprentis     int        `json:"nb_apprentis,omitempty"`
	Semesters       []Semester `json:"semesters"`
}

type Semester struct {
	ID           string        `json:"semester_id"`
	Name         string        `json:"name"`
	StartDate    string        `json:"start_date,omitempty"`
	EndDate      string        `json:"end_date,omitempty"`
	Order        int           `json:"order"`
	Deliverables []Deliverable `json:"deliverables"`
}

type Deliverable struct {
	ID          string `json:"deliverable_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Order       int    `json:"order"`
}

// Roster is the privileged apprentice listing from the admin service.
type Roster struct {
	Apprentis []Apprentice `json:"apprentis"`
}

// DocumentBundle is the per-apprentice document overview from the
// apprenti service: one block per semester plus the category catalog.
type DocumentBundle struct {
	Promotion  PromotionSummary    `json:"promotion"`
	Semesters  []SemesterDocuments `json:"semesters"`
	Categories []DocumentCategory  `json:"categories"`
}

type PromotionSummary struct {
	ID              string `json:"promotion_id"`
	AnneeAcademique string `json:"annee_academique"`
	Label           string `json:"label,omitempty"`
}

type SemesterDocuments struct {
	ID        string     `json:"semester_id"`
	Name      string     `json:"name"`
	Documents []Document `json:"documents"`
}

type Document struct {
	ID           string            `json:"id"`
	SemesterID   string            `json:"semester_id"`
	Category     string            `json:"category"`
	FileName     string            `json:"file_name"`
	FileSize     int64             `json:"file_size"`
	FileType     string            `json:"file_type"`
	UploadedAt   string            `json:"uploaded_at"`
	UploaderID   string            `json:"uploader_id"`
	UploaderName string            `json:"uploader_name"`
	UploaderRole string            `json:"uploader_role"`
	DownloadURL  string            `json:"download_url"`
	Comments     []DocumentComment `json:"comments"`
}

type DocumentCategory struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Accept      string `json:"accept,omitempty"`
}

type DocumentComment struct {
	ID         string `json:"comment_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	AuthorRole string `json:"author_role"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// Entretien is a scheduled apprentice/supervisor meeting. The tuteur
// and maitre blocks carry each party's contact reference together with
// their approval vote.
type Entretien struct {
	ID          string          `json:"entretien_id"`
	ApprentiID  string          `json:"apprenti_id"`
	ApprentiNom string          `json:"apprenti_nom"`
	Date        string          `json:"date"`
	Sujet       string          `json:"sujet"`
	SemesterID  string          `json:"semester_id,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Tuteur      *EntretienParty `json:"tuteur,omitempty"`
	Maitre      *EntretienParty `json:"maitre,omitempty"`
}

// EntretienParty mirrors the supervisor reference embedded in the
// apprentice record, extended with the party's vote. An empty Statut
// reads as "en_attente".
type EntretienParty struct {
	TuteurID  string `json:"tuteur_id,omitempty"`
	MaitreID  string `json:"maitre_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Statut    string `json:"statut,omitempty"`
}

// UserID returns whichever reference id the party carries.
func (p *EntretienParty) UserID() string {
	if p == nil {
		return ""
	}
	if p.TuteurID != "" {
		return p.TuteurID
	}
	return p.MaitreID
}

// EntretienCreateRequest is the scheduling payload sent to the
// apprenti service.
type EntretienCreateRequest struct {
	ApprentiID string `json:"apprenti_id"`
	Date       string `json:"date"`
	Sujet      string `json:"sujet"`
	SemesterID string `json:"semester_id,omitempty"`
}

// Jury is an evaluation session from the jury service.
type Jury struct {
	ID                 string        `json:"id"`
	Date               string        `json:"date"`
	Status             string        `json:"status"`
	SemestreReference  string        `json:"semestre_reference,omitempty"`
	Members            JuryMembers   `json:"members"`
	PromotionReference *PromotionRef `json:"promotion_reference,omitempty"`
	CreatedAt          string        `json:"created_at,omitempty"`
	UpdatedAt          string        `json:"updated_at,omitempty"`
}

type JuryMembers struct {
	Tuteur      *JuryMember `json:"tuteur,omitempty"`
	Professeur  *JuryMember `json:"professeur,omitempty"`
	Apprenti    *JuryMember `json:"apprenti,omitempty"`
	Intervenant *JuryMember `json:"intervenant,omitempty"`
}

type JuryMember struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type PromotionRef struct {
	PromotionID      string `json:"promotion_id"`
	AnneeAcademique  string `json:"annee_academique,omitempty"`
	Label            string `json:"label,omitempty"`
	SemesterID       string `json:"semester_id"`
	SemesterName     string `json:"semester_name,omitempty"`
	DeliverableID    string `json:"deliverable_id,omitempty"`
	DeliverableTitle string `json:"deliverable_title,omitempty"`
}

// JuryCreateRequest is the creation payload accepted by the jury
// service.
type JuryCreateRequest struct {
	Date          string `json:"date"`
	Status        string `json:"status,omitempty"`
	PromotionID   string `json:"promotion_id"`
	SemesterID    string `json:"semester_id"`
	DeliverableID string `json:"deliverable_id,omitempty"`
	TuteurID      string `json:"tuteur_id"`
	ProfesseurID  string `json:"professeur_id"`
	ApprentiID    string `json:"apprenti_id"`
	IntervenantID string `json:"intervenant_id"`
}

// JuryUpdateRequest is the partial update payload for a jury session.
// Nil fields are left untouched upstream.
type JuryUpdateRequest struct {
	PromotionID   *string `json:"promotion_id,omitempty"`
	SemesterID    *string `json:"semester_id,omitempty"`
	DeliverableID *string `json:"deliverable_id,omitempty"`
	Date          *string `json:"date,omitempty"`
	Status        *string `json:"status,omitempty"`
	TuteurID      *string `json:"tuteur_id,omitempty"`
	ProfesseurID  *string `json:"professeur_id,omitempty"`
	ApprentiID    *string `json:"apprenti_id,omitempty"`
	IntervenantID *string `json:"intervenant_id,omitempty"`
}

// TimelineOption is the promotion timeline picker payload from the
// jury service.
type TimelineOption struct {
	PromotionID     string                   `json:"promotion_id"`
	AnneeAcademique string                   `json:"annee_academique"`
	Label           string                   `json:"label,omitempty"`
	Semesters       []TimelineSemesterOption `json:"semesters"`
}

type TimelineSemesterOption struct {
	SemesterID   string                      `json:"semester_id"`
	Name         string                      `json:"name"`
	Deliverables []TimelineDeliverableOption `json:"deliverables"`
}

type TimelineDeliverableOption struct {
	DeliverableID string `json:"deliverable_id"`
	Title         string `json:"title"`
	DueDate       string `json:"due_date,omitempty"`
}
