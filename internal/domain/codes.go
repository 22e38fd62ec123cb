package domain

// DocumentKind PJ_ID code of a supporting document
type DocumentKind string

const (
	KindBirthCertificate     DocumentKind = "EXTNAIS"
	KindMarriageCertificate  DocumentKind = "EXTMARI"
	KindSchoolCertificate    DocumentKind = "CERTSCO"
	KindMedicalCertificate   DocumentKind = "CERTMED"
	KindIndigenceCertificate DocumentKind = "CERTIND"
)

var documentKinds = map[string]DocumentKind{
	"acte-naissance":           KindBirthCertificate,
	"acte-mariage":             KindMarriageCertificate,
	"certificat-frequentation": KindSchoolCertificate,
	"certificat-medical":       KindMedicalCertificate,
	"certificat-indigence":     KindIndigenceCertificate,
}

// DocumentKindFromSlug maps a survey attachment slug to its document kind.
// ok is false for slugs the case database does not accept.
func DocumentKindFromSlug(slug string) (DocumentKind, bool) {
	k, ok := documentKinds[slug]
	return k, ok
}

// Sex codes
const (
	SexMale   = "M"
	SexFemale = "F"
)

// SexFromSurvey converts the survey sex choice, unknown values count as male
func SexFromSurvey(v string) string {
	if v == "feminin" {
		return SexFemale
	}
	return SexMale
}

// OppositeSex returns the other sex code
func OppositeSex(sex string) string {
	if sex == SexFemale {
		return SexMale
	}
	return SexFemale
}

// Marital status codes
const (
	MaritalSingle   = "C"
	MaritalDivorced = "D"
	MaritalMarried  = "M"
	MaritalWidowed  = "V"
	MaritalUnknown  = "A"
)

// MaritalStatusFromSurvey converts situation-matrimoniale
func MaritalStatusFromSurvey(v string) string {
	switch v {
	case "celibataire":
		return MaritalSingle
	case "divorce":
		return MaritalDivorced
	case "marie":
		return MaritalMarried
	case "veuf":
		return MaritalWidowed
	default:
		return MaritalUnknown
	}
}

// Civility titles
const (
	CivilityMister = "M"
	CivilityMadam  = "MME"
	CivilityMiss   = "MLLE"
)

// Civility derives the title from sex; girls get the unmarried form
func Civility(sex string, isChild bool) string {
	if sex == SexMale {
		return CivilityMister
	}
	if isChild {
		return CivilityMiss
	}
	return CivilityMadam
}
