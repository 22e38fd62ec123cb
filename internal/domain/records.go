package domain

import "time"

// Role household member role
type Role string

const (
	RoleHead   Role = "indigent"
	RoleSpouse Role = "spouse"
	RoleChild  Role = "child"
)

// Relation markers stored in PERSO_RELATION
const (
	RelationHead   = "A"
	RelationSpouse = "M"
	RelationChild  = "E"
)

// Relation returns the relation marker stored for the role
func (r Role) Relation() string {
	switch r {
	case RoleSpouse:
		return RelationSpouse
	case RoleChild:
		return RelationChild
	default:
		return RelationHead
	}
}

// Fixed values of the case database
const (
	CaseStatusNew      = "NV"
	CaseTypeIndigence  = "IND"
	CaseImputation     = "PRIM"
	CaseEntryType      = "N"
	CaseOPVCode        = 1
	PersonTypeIndigent = "IND"
	StateNotValidated  = "N"

	CountryMali      = "MLI"
	CountryUnknown   = "000"
	NationalityMali  = "MALIENNE"
	NationalityOther = "INCONNUE"

	AttachmentValidityMonths = 12
)

// CaseRecord IM_DOSSIERS_MOBILE row
type CaseRecord struct {
	ID          string
	Date        time.Time
	Status      string
	Type        string
	OgdID       int
	CreatedBy   string
	CreatedAt   time.Time
	Imputation  string
	LocationID  int64
	HeadName    string
	HeadFirst   string
	Certificate string
	EntryType   string
	OPVCode     int
}

// PersonRecord IM_PERSONNES_MOBILE row
type PersonRecord struct {
	ID                int64
	CaseID            string
	OgdID             int
	Civility          string
	Name              *string
	FirstName         *string
	Sex               string
	BirthDate         *time.Time
	BirthLocationID   *int64
	MaritalStatus     string
	Nationality       string
	BirthCountry      string
	FatherName        *string
	FatherFirstName   *string
	MotherName        *string
	MotherFirstName   *string
	Relation          string
	PersonType        string
	AddressDistrictID *int64
	AddressLocalityID *int64
	AddressQuarter    *string
	Phone             *string
	NINA              *string
	ValidationState   string
	CreatedBy         string
	CreatedAt         time.Time
	HeadID            *int64
	RegistrationState string
}

// AttachmentRecord IM_PERSO_PJ_MOBILE row
type AttachmentRecord struct {
	PersonID  int64
	CaseID    string
	Kind      DocumentKind
	StartDate time.Time
	Number    *string
	IssuedBy  *string
	Validity  int
	EndDate   *time.Time
}
