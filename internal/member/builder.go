package member

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/fieldmap"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// birthTypeExact discriminator value for an exact birth date
const birthTypeExact = "ddn"

// Locations lenient administrative-area lookups
type Locations interface {
	Commune(commune, cercle string) (int64, bool)
	Cercle(slug string) (int64, bool)
	Region(slug string) (int64, bool)
}

// Builder turns survey members into person attributes
type Builder struct {
	fields    *fieldmap.Map
	locations Locations
}

// NewBuilder creates a member data builder
func NewBuilder(fields *fieldmap.Map, locations Locations) *Builder {
	return &Builder{fields: fields, locations: locations}
}

// BuildHead builds the household head from the top-level survey fields
func (b *Builder) BuildHead(rec survey.Record) *domain.PersonRecord {
	role := domain.RoleHead
	sex := domain.SexFromSurvey(rec.Text(b.path(role, fieldmap.Sex)))

	p := b.base(role, rec)
	p.Sex = sex
	p.Civility = domain.Civility(sex, false)
	p.MaritalStatus = domain.MaritalStatusFromSurvey(rec.Text(b.path(role, fieldmap.MaritalStatus)))
	p.FatherName = b.clean(rec, role, fieldmap.FatherName)
	p.FatherFirstName = b.clean(rec, role, fieldmap.FatherFirstName)
	p.MotherName = b.clean(rec, role, fieldmap.MotherName)
	p.MotherFirstName = b.clean(rec, role, fieldmap.MotherFirstName)

	// address comes from the survey location, not from the birth place
	cercle := rec.Text(b.path(role, fieldmap.AddrCercle))
	if id, ok := b.locations.Cercle(cercle); ok {
		p.AddressDistrictID = &id
	} else if id, ok := b.locations.Region(rec.Text(b.path(role, fieldmap.AddrRegion))); ok {
		p.AddressDistrictID = &id
	}
	if id, ok := b.locations.Commune(rec.Text(b.path(role, fieldmap.AddrCommune)), cercle); ok {
		p.AddressLocalityID = &id
	}
	p.AddressQuarter = b.clean(rec, role, fieldmap.Address)
	p.Phone = b.firstPhone(rec)
	p.NINA = b.clean(rec, role, fieldmap.NINA)

	return p
}

// BuildSpouse builds spouse index (0-based) of the household
func (b *Builder) BuildSpouse(headID int64, rec survey.Record, index int) (*domain.PersonRecord, error) {
	role := domain.RoleSpouse
	spouse, err := b.member(rec, role, index)
	if err != nil {
		return nil, err
	}

	headSex := domain.SexFromSurvey(rec.Text(b.path(domain.RoleHead, fieldmap.Sex)))
	sex := domain.OppositeSex(headSex)

	p := b.base(role, spouse)
	p.HeadID = &headID
	p.Sex = sex
	p.Civility = domain.Civility(sex, false)
	p.MaritalStatus = domain.MaritalMarried
	p.FatherName = b.clean(spouse, role, fieldmap.FatherName)
	p.FatherFirstName = b.clean(spouse, role, fieldmap.FatherFirstName)
	p.MotherName = b.clean(spouse, role, fieldmap.MotherName)
	p.MotherFirstName = b.clean(spouse, role, fieldmap.MotherFirstName)
	return p, nil
}

// BuildChild builds child index (0-based) of the household. The head is
// the parent matching its sex, the declared other parent fills the other slot.
func (b *Builder) BuildChild(headID int64, rec survey.Record, index int) (*domain.PersonRecord, error) {
	role := domain.RoleChild
	child, err := b.member(rec, role, index)
	if err != nil {
		return nil, err
	}

	sex := domain.SexFromSurvey(child.Text(b.path(role, fieldmap.Sex)))
	headSex := domain.SexFromSurvey(rec.Text(b.path(domain.RoleHead, fieldmap.Sex)))

	headName := b.clean(rec, domain.RoleHead, fieldmap.Name)
	headFirst := b.clean(rec, domain.RoleHead, fieldmap.FirstName)
	otherName := b.clean(child, role, fieldmap.OtherParentName)
	otherFirst := b.clean(child, role, fieldmap.OtherParentFirstName)

	p := b.base(role, child)
	p.HeadID = &headID
	p.Sex = sex
	p.Civility = domain.Civility(sex, true)
	p.MaritalStatus = ""
	if headSex == domain.SexMale {
		p.FatherName, p.FatherFirstName = headName, headFirst
		p.MotherName, p.MotherFirstName = otherName, otherFirst
	} else {
		p.FatherName, p.FatherFirstName = otherName, otherFirst
		p.MotherName, p.MotherFirstName = headName, headFirst
	}
	return p, nil
}

// base fills the attributes shared by every role
func (b *Builder) base(role domain.Role, rec survey.Record) *domain.PersonRecord {
	p := &domain.PersonRecord{
		Name:      b.clean(rec, role, fieldmap.Name),
		FirstName: b.clean(rec, role, fieldmap.FirstName),
		BirthDate: b.birthDate(rec, role),
		Relation:  role.Relation(),
	}
	if role != domain.RoleHead {
		p.PersonType = domain.PersonTypeIndigent
	}

	p.BirthLocationID = b.BirthLocation(rec, role)
	if p.BirthLocationID != nil {
		p.BirthCountry = domain.CountryMali
		p.Nationality = domain.NationalityMali
	} else {
		p.BirthCountry = domain.CountryUnknown
		p.Nationality = domain.NationalityOther
	}
	return p
}

// BirthLocation returns the most specific resolvable birth place of a
// member: commune, else cercle, else region, else nil.
func (b *Builder) BirthLocation(rec survey.Record, role domain.Role) *int64 {
	region := rec.Text(b.path(role, fieldmap.BirthRegion))
	cercle := rec.Text(b.path(role, fieldmap.BirthCercle))
	commune := rec.Text(b.path(role, fieldmap.BirthCommune))

	if id, ok := b.locations.Commune(commune, cercle); ok {
		return &id
	}
	if id, ok := b.locations.Cercle(cercle); ok {
		return &id
	}
	if id, ok := b.locations.Region(region); ok {
		return &id
	}
	return nil
}

// birthDate reads either the exact date or Jan 1st of the declared year
func (b *Builder) birthDate(rec survey.Record, role domain.Role) *time.Time {
	if rec.Text(b.path(role, fieldmap.BirthType)) == birthTypeExact {
		if d, ok := survey.ParseDatePtr(rec.Str(b.path(role, fieldmap.BirthDate))); ok {
			return &d
		}
		return nil
	}
	year, err := strconv.Atoi(strings.TrimSpace(rec.Text(b.path(role, fieldmap.BirthYear))))
	if err != nil || year < 1 {
		return nil
	}
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

// firstPhone returns the first non-empty number of the phones group
func (b *Builder) firstPhone(rec survey.Record) *string {
	numberPath := b.path(domain.RoleHead, fieldmap.PhoneNumber)
	for _, entry := range rec.Group(b.path(domain.RoleHead, fieldmap.Phones)) {
		if tel := survey.Clean(entry.Str(numberPath), false); tel != nil && *tel != "" {
			return tel
		}
	}
	return nil
}

func (b *Builder) member(rec survey.Record, role domain.Role, index int) (survey.Record, error) {
	group := rec.Group(b.fields.Group(role))
	if index < 0 || index >= len(group) {
		return nil, &domain.ValidationError{
			Ident: rec.Ident(),
			Err:   fmt.Errorf("no %s at index %d (%d declared)", role, index, len(group)),
		}
	}
	return group[index], nil
}

func (b *Builder) clean(rec survey.Record, role domain.Role, key fieldmap.Key) *string {
	return survey.Clean(rec.Str(b.path(role, key)), false)
}

func (b *Builder) path(role domain.Role, key fieldmap.Key) string {
	return b.fields.Path(role, key)
}
