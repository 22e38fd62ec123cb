package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/attachment"
	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/fieldmap"
	"github.com/yeleman/anam-desktop/internal/member"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// Tx statements of one household import. Generated identifiers are
// returned by the store.
type Tx interface {
	NextCaseID(ctx context.Context) (string, error)
	InsertCase(ctx context.Context, c *domain.CaseRecord) error
	InsertPerson(ctx context.Context, p *domain.PersonRecord) (int64, error)
	InsertAttachment(ctx context.Context, a *domain.AttachmentRecord) error
}

// Locations strict and lenient administrative-area lookups
type Locations interface {
	member.Locations
	ResolveCommune(commune, cercle string) (int64, error)
}

// Options fixed values written on every row
type Options struct {
	CreatedBy string
	OgdID     int
}

// CaseImporter imports one survey record as a case, its members and their attachments
type CaseImporter struct {
	fields      *fieldmap.Map
	locations   Locations
	members     *member.Builder
	attachments *attachment.Resolver
	opts        Options
	now         func() time.Time
	logger      *zap.Logger
}

// NewCaseImporter creates a case importer
func NewCaseImporter(fields *fieldmap.Map, locations Locations, opts Options, logger *zap.Logger) *CaseImporter {
	return &CaseImporter{
		fields:      fields,
		locations:   locations,
		members:     member.NewBuilder(fields, locations),
		attachments: attachment.NewResolver(fields),
		opts:        opts,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the clock used for creation timestamps and default
// attachment dates
func (ci *CaseImporter) WithClock(now func() time.Time) *CaseImporter {
	ci.now = now
	ci.attachments.WithClock(now)
	return ci
}

// ImportRecord inserts the case, head, head attachments, then every spouse and
// child with their attachments, in survey order. The first failure aborts the
// record; rollback is left to the caller.
func (ci *CaseImporter) ImportRecord(ctx context.Context, tx Tx, rec survey.Record) (domain.IdentifierMap, error) {
	ident := rec.Ident()
	if ident == "" {
		return nil, &domain.ValidationError{Err: errors.New("missing ident")}
	}
	if !rec.Eligible() {
		return nil, &domain.ValidationError{Ident: ident, Err: domain.ErrIneligible}
	}

	log := ci.logger.With(zap.String("ident", ident))
	ids := domain.Identifiers{}

	caseID, err := ci.createCase(ctx, tx, rec)
	if err != nil {
		return nil, err
	}
	ids[domain.LabelCase] = caseID
	log = log.With(zap.String("dos_id", caseID))
	log.Info("Created case")

	head := ci.members.BuildHead(rec)
	headID, err := ci.createPerson(ctx, tx, caseID, head)
	if err != nil {
		return nil, err
	}
	ids[domain.LabelHead] = headID
	log.Info("Created head of household", zap.Int64("perso_id", headID))

	if err := ci.createAttachments(ctx, tx, log, caseID, headID, rec, rec, domain.RoleHead, 0); err != nil {
		return nil, err
	}

	for i, spouse := range rec.Group(ci.fields.Group(domain.RoleSpouse)) {
		p, err := ci.members.BuildSpouse(headID, rec, i)
		if err != nil {
			return nil, err
		}
		id, err := ci.createPerson(ctx, tx, caseID, p)
		if err != nil {
			return nil, err
		}
		ids[domain.SpouseLabel(i+1)] = id
		log.Info("Created spouse", zap.Int("index", i+1), zap.Int64("perso_id", id))

		if err := ci.createAttachments(ctx, tx, log, caseID, id, rec, spouse, domain.RoleSpouse, i); err != nil {
			return nil, err
		}
	}

	for i, child := range rec.Group(ci.fields.Group(domain.RoleChild)) {
		p, err := ci.members.BuildChild(headID, rec, i)
		if err != nil {
			return nil, err
		}
		id, err := ci.createPerson(ctx, tx, caseID, p)
		if err != nil {
			return nil, err
		}
		ids[domain.ChildLabel(i+1)] = id
		log.Info("Created child", zap.Int("index", i+1), zap.Int64("perso_id", id))

		if err := ci.createAttachments(ctx, tx, log, caseID, id, rec, child, domain.RoleChild, i); err != nil {
			return nil, err
		}
	}

	return domain.IdentifierMap{ident: ids}, nil
}

func (ci *CaseImporter) createCase(ctx context.Context, tx Tx, rec survey.Record) (string, error) {
	role := domain.RoleHead
	cercle := rec.Text(ci.fields.Path(role, fieldmap.AddrCercle))
	commune := rec.Text(ci.fields.Path(role, fieldmap.AddrCommune))
	locationID, err := ci.locations.ResolveCommune(commune, cercle)
	if err != nil {
		return "", err
	}

	caseID, err := tx.NextCaseID(ctx)
	if err != nil {
		return "", err
	}

	now := ci.now()
	y, m, d := now.Date()
	c := &domain.CaseRecord{
		ID:          caseID,
		Date:        time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
		Status:      domain.CaseStatusNew,
		Type:        domain.CaseTypeIndigence,
		OgdID:       ci.opts.OgdID,
		CreatedBy:   ci.opts.CreatedBy,
		CreatedAt:   now,
		Imputation:  domain.CaseImputation,
		LocationID:  locationID,
		HeadName:    caseName(rec.Text(ci.fields.Path(role, fieldmap.Name))),
		HeadFirst:   caseName(rec.Text(ci.fields.Path(role, fieldmap.FirstName))),
		Certificate: "N°CI_" + caseID,
		EntryType:   domain.CaseEntryType,
		OPVCode:     domain.CaseOPVCode,
	}
	if err := tx.InsertCase(ctx, c); err != nil {
		return "", err
	}
	return caseID, nil
}

func (ci *CaseImporter) createPerson(ctx context.Context, tx Tx, caseID string, p *domain.PersonRecord) (int64, error) {
	p.CaseID = caseID
	p.OgdID = ci.opts.OgdID
	p.ValidationState = domain.StateNotValidated
	p.RegistrationState = domain.StateNotValidated
	p.CreatedBy = ci.opts.CreatedBy
	p.CreatedAt = ci.now()
	return tx.InsertPerson(ctx, p)
}

// createAttachments inserts the supported documents of one member. owner is
// the member's own survey record, where document fields are read from.
func (ci *CaseImporter) createAttachments(ctx context.Context, tx Tx, log *zap.Logger, caseID string, personID int64,
	rec, owner survey.Record, role domain.Role, index int) error {
	for _, entry := range ci.attachments.ListSupported(rec, role, index) {
		a, ok := ci.attachments.Build(entry.Slug(), role, owner)
		if !ok {
			continue
		}
		a.CaseID = caseID
		a.PersonID = personID
		if err := tx.InsertAttachment(ctx, a); err != nil {
			return err
		}
		log.Info("Created attachment",
			zap.Int64("perso_id", personID),
			zap.String("pj_id", string(a.Kind)))
	}
	return nil
}

// caseName head names on the case row are uppercase plain ASCII
func caseName(s string) string {
	return strings.ToUpper(survey.CleanText(s, true))
}
