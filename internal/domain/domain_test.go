package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKindFromSlug(t *testing.T) {
	tests := []struct {
		slug string
		want DocumentKind
		ok   bool
	}{
		{"acte-naissance", KindBirthCertificate, true},
		{"acte-mariage", KindMarriageCertificate, true},
		{"certificat-frequentation", KindSchoolCertificate, true},
		{"certificat-medical", KindMedicalCertificate, true},
		{"certificat-indigence", KindIndigenceCertificate, true},
		{"photo", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			got, ok := DocumentKindFromSlug(tt.slug)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSurveyCodes(t *testing.T) {
	assert.Equal(t, SexMale, SexFromSurvey("masculin"))
	assert.Equal(t, SexFemale, SexFromSurvey("feminin"))
	assert.Equal(t, SexMale, SexFromSurvey(""))
	assert.Equal(t, SexFemale, OppositeSex(SexMale))
	assert.Equal(t, SexMale, OppositeSex(SexFemale))

	assert.Equal(t, MaritalSingle, MaritalStatusFromSurvey("celibataire"))
	assert.Equal(t, MaritalDivorced, MaritalStatusFromSurvey("divorce"))
	assert.Equal(t, MaritalMarried, MaritalStatusFromSurvey("marie"))
	assert.Equal(t, MaritalWidowed, MaritalStatusFromSurvey("veuf"))
	assert.Equal(t, MaritalUnknown, MaritalStatusFromSurvey("concubinage"))

	assert.Equal(t, CivilityMister, Civility(SexMale, true))
	assert.Equal(t, CivilityMadam, Civility(SexFemale, false))
	assert.Equal(t, CivilityMiss, Civility(SexFemale, true))
}

func TestRoleRelation(t *testing.T) {
	assert.Equal(t, "A", RoleHead.Relation())
	assert.Equal(t, "M", RoleSpouse.Relation())
	assert.Equal(t, "E", RoleChild.Relation())
}

func TestIdentifierMap_MergeAndOrder(t *testing.T) {
	m := IdentifierMap{}
	m.Merge(IdentifierMap{"R2": {LabelCase: "0002-17102026", LabelHead: int64(12)}})
	m.Merge(IdentifierMap{"R1": {
		ChildLabel(1): int64(4), LabelHead: int64(2), SpouseLabel(1): int64(3), LabelCase: "0001-17102026",
	}})

	assert.Equal(t, []string{"R1", "R2"}, m.Idents())
	assert.Equal(t, []string{"dossier", "indigent", "epouse1", "enfant1"}, m["R1"].Labels())
}

func TestIdentifiers_LabelsSortNumerically(t *testing.T) {
	ids := Identifiers{LabelCase: "0001-17102026", LabelHead: int64(1)}
	for n := 1; n <= 11; n++ {
		ids[ChildLabel(n)] = int64(100 + n)
	}
	ids[SpouseLabel(2)] = int64(3)
	ids[SpouseLabel(1)] = int64(2)

	labels := ids.Labels()
	require.Len(t, labels, 15)
	assert.Equal(t, []string{"dossier", "indigent", "epouse1", "epouse2", "enfant1", "enfant2", "enfant3"}, labels[:7])
	assert.Equal(t, []string{"enfant9", "enfant10", "enfant11"}, labels[12:])
}

func TestCommitError_Safe(t *testing.T) {
	assert.True(t, (&CommitError{Committed: 0, Err: errors.New("x")}).Safe())
	assert.False(t, (&CommitError{Committed: 50, Err: errors.New("x")}).Safe())
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("duplicate key")
	err := fmt.Errorf("import R1: %w", &InsertError{Table: "im_personnes_mobile", Err: base})

	var insertErr *InsertError
	assert.True(t, errors.As(err, &insertErr))
	assert.ErrorIs(t, err, base)

	verr := &ValidationError{Ident: "R1", Err: ErrIneligible}
	assert.ErrorIs(t, verr, ErrIneligible)
	assert.Contains(t, verr.Error(), "R1")
}
