package fieldmap

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/yeleman/anam-desktop/internal/domain"
)

//go:embed fields.yaml
var defaultFields []byte

// Key a member attribute read from the survey
type Key string

const (
	Name                 Key = "name"
	FirstName            Key = "first_name"
	Sex                  Key = "sex"
	MaritalStatus        Key = "marital_status"
	BirthType            Key = "birth_type"
	BirthDate            Key = "birth_date"
	BirthYear            Key = "birth_year"
	BirthRegion          Key = "birth_region"
	BirthCercle          Key = "birth_cercle"
	BirthCommune         Key = "birth_commune"
	FatherName           Key = "father_name"
	FatherFirstName      Key = "father_first_name"
	MotherName           Key = "mother_name"
	MotherFirstName      Key = "mother_first_name"
	OtherParentName      Key = "other_parent_name"
	OtherParentFirstName Key = "other_parent_first_name"
	Address              Key = "address"
	Phones               Key = "phones"
	PhoneNumber          Key = "phone_number"
	NINA                 Key = "nina"
	AddrRegion           Key = "addr_region"
	AddrCercle           Key = "addr_cercle"
	AddrCommune          Key = "addr_commune"
)

var birthKeys = []Key{Name, FirstName, BirthType, BirthDate, BirthYear, BirthRegion, BirthCercle, BirthCommune}

// required keys per role, checked when a map is loaded
var required = map[domain.Role][]Key{
	domain.RoleHead: append(append([]Key{}, birthKeys...),
		Sex, MaritalStatus, FatherName, FatherFirstName, MotherName, MotherFirstName,
		Address, Phones, PhoneNumber, NINA, AddrRegion, AddrCercle, AddrCommune),
	domain.RoleSpouse: append(append([]Key{}, birthKeys...),
		FatherName, FatherFirstName, MotherName, MotherFirstName),
	domain.RoleChild: append(append([]Key{}, birthKeys...),
		Sex, OtherParentName, OtherParentFirstName),
}

// DocumentPaths survey paths of a document's fields, empty when not collected
type DocumentPaths struct {
	Number string `yaml:"number"`
	Issuer string `yaml:"issuer"`
	Date   string `yaml:"date"`
}

type rawMap struct {
	Groups      map[string]string                   `yaml:"groups"`
	Members     map[string]map[string]string        `yaml:"members"`
	Attachments map[string]map[string]DocumentPaths `yaml:"attachments"`
}

// Map role-scoped survey field paths
type Map struct {
	groups      map[domain.Role]string
	members     map[domain.Role]map[Key]string
	attachments map[domain.Role]map[domain.DocumentKind]DocumentPaths
}

// Default returns the map built into the binary
func Default() (*Map, error) {
	return Parse(defaultFields)
}

// MustDefault is Default for package initialisation and tests
func MustDefault() *Map {
	m, err := Default()
	if err != nil {
		panic(err)
	}
	return m
}

// Parse reads and validates a YAML field map
func Parse(data []byte) (*Map, error) {
	var raw rawMap
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field map: %w", err)
	}

	m := &Map{
		groups:      make(map[domain.Role]string),
		members:     make(map[domain.Role]map[Key]string),
		attachments: make(map[domain.Role]map[domain.DocumentKind]DocumentPaths),
	}
	var errs []error

	for role, path := range raw.Groups {
		m.groups[domain.Role(role)] = path
	}
	for role, keys := range raw.Members {
		r := domain.Role(role)
		if _, known := required[r]; !known {
			errs = append(errs, fmt.Errorf("unknown role %q", role))
			continue
		}
		m.members[r] = make(map[Key]string, len(keys))
		for k, path := range keys {
			m.members[r][Key(k)] = path
		}
	}
	for role, kinds := range raw.Attachments {
		r := domain.Role(role)
		if _, known := required[r]; !known {
			errs = append(errs, fmt.Errorf("unknown attachment role %q", role))
			continue
		}
		m.attachments[r] = make(map[domain.DocumentKind]DocumentPaths, len(kinds))
		for kind, paths := range kinds {
			if !knownKind(domain.DocumentKind(kind)) {
				errs = append(errs, fmt.Errorf("unknown document kind %q for role %s", kind, role))
				continue
			}
			m.attachments[r][domain.DocumentKind(kind)] = paths
		}
	}

	if err := m.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid field map: %w", errors.Join(errs...))
	}
	return m, nil
}

func (m *Map) validate() error {
	var errs []error
	for _, r := range []domain.Role{domain.RoleSpouse, domain.RoleChild} {
		if m.groups[r] == "" {
			errs = append(errs, fmt.Errorf("missing group path for %s", r))
		}
	}
	roles := make([]string, 0, len(required))
	for r := range required {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, role := range roles {
		r := domain.Role(role)
		for _, k := range required[r] {
			if m.members[r][k] == "" {
				errs = append(errs, fmt.Errorf("missing %s path for %s", k, r))
			}
		}
	}
	return errors.Join(errs...)
}

// Path survey path of key for role
func (m *Map) Path(role domain.Role, key Key) string {
	return m.members[role][key]
}

// Group survey path of the repeated group holding role members
func (m *Map) Group(role domain.Role) string {
	return m.groups[role]
}

// Document returns the field paths of kind for role, ok is false when
// the role does not carry that kind.
func (m *Map) Document(role domain.Role, kind domain.DocumentKind) (DocumentPaths, bool) {
	p, ok := m.attachments[role][kind]
	return p, ok
}

func knownKind(k domain.DocumentKind) bool {
	switch k {
	case domain.KindBirthCertificate, domain.KindMarriageCertificate,
		domain.KindSchoolCertificate, domain.KindMedicalCertificate,
		domain.KindIndigenceCertificate:
		return true
	}
	return false
}
