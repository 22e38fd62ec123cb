package attachment

import (
	"time"

	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/fieldmap"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// Resolver maps survey evidence documents to attachment rows
type Resolver struct {
	fields *fieldmap.Map
	now    func() time.Time
}

// NewResolver creates an attachment resolver
func NewResolver(fields *fieldmap.Map) *Resolver {
	return &Resolver{fields: fields, now: time.Now}
}

// WithClock overrides the clock used for the default validity start
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// List returns the attachment entries held by one member: the head owns
// every top-level entry except the spouse and child groups, a spouse or
// child owns entry index of its group.
func (r *Resolver) List(rec survey.Record, role domain.Role, index int) []survey.Record {
	if role == domain.RoleHead {
		return rec.HeadAttachments(r.fields.Group(domain.RoleSpouse), r.fields.Group(domain.RoleChild))
	}
	return rec.GroupAttachments(r.fields.Group(role), index)
}

// ListSupported is List restricted to document kinds the case database accepts
func (r *Resolver) ListSupported(rec survey.Record, role domain.Role, index int) []survey.Record {
	all := r.List(rec, role, index)
	out := make([]survey.Record, 0, len(all))
	for _, a := range all {
		if _, ok := domain.DocumentKindFromSlug(a.Slug()); ok {
			out = append(out, a)
		}
	}
	return out
}

// Build maps kindSlug to an attachment, reading document fields from attrs,
// the member's own survey record. ok is false for unsupported kinds, which
// callers skip. The validity start defaults to today when the survey has no date.
func (r *Resolver) Build(kindSlug string, role domain.Role, attrs survey.Record) (*domain.AttachmentRecord, bool) {
	kind, ok := domain.DocumentKindFromSlug(kindSlug)
	if !ok {
		return nil, false
	}

	a := &domain.AttachmentRecord{
		Kind:     kind,
		Validity: domain.AttachmentValidityMonths,
	}

	paths, _ := r.fields.Document(role, kind)
	if paths.Number != "" {
		a.Number = survey.Clean(attrs.Str(paths.Number), false)
	}
	if paths.Issuer != "" {
		a.IssuedBy = survey.Clean(attrs.Str(paths.Issuer), false)
	}
	if paths.Date != "" {
		if d, ok := survey.ParseDatePtr(attrs.Str(paths.Date)); ok {
			a.StartDate = d
		}
	}
	if a.StartDate.IsZero() {
		y, m, d := r.now().Date()
		a.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return a, true
}
