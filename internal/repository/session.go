package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// Case database tables
const (
	TableCases       = "anam.im_dossiers_mobile"
	TablePersons     = "anam.im_personnes_mobile"
	TableAttachments = "anam.im_perso_pj_mobile"
	SequenceCases    = "anam.sq_day_doss"
)

// Column widths of the case database
const (
	widthCreatedBy      = 30
	widthCaseName       = 60
	widthCaseFirstName  = 60
	widthCertificate    = 120
	widthPersonName     = 35
	widthPersonFirst    = 60
	widthNationality    = 15
	widthParentName     = 30
	widthQuarter        = 30
	widthPhone          = 12
	widthNINA           = 15
	widthDocumentNumber = 20
	widthIssuedBy       = 80
)

// ErrSessionClosed statements were issued after Close
var ErrSessionClosed = errors.New("session is closed")

// Session transactional access to the case database over one pinned
// connection. A transaction is opened on the first statement after each
// Commit or Rollback. A Session is not safe for concurrent use.
type Session struct {
	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
	logger *zap.Logger
}

// NewSession wraps a connection obtained from database.Acquire
func NewSession(conn *sql.Conn, logger *zap.Logger) *Session {
	return &Session{conn: conn, logger: logger}
}

func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// NextCaseID draws a case identifier: 4-digit daily sequence, dash, DDMMYYYY
func (s *Session) NextCaseID(ctx context.Context) (string, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return "", &domain.InsertError{Table: SequenceCases, Err: err}
	}
	query := `SELECT LPAD(nextval('` + SequenceCases + `')::text, 4, '0') || '-' || to_char(now(), 'DDMMYYYY')`

	var id string
	if err := tx.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return "", &domain.InsertError{Table: SequenceCases, Err: err}
	}
	return id, nil
}

// InsertCase inserts a case row
func (s *Session) InsertCase(ctx context.Context, c *domain.CaseRecord) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return &domain.InsertError{Table: TableCases, Err: err}
	}
	query := `
		INSERT INTO ` + TableCases + ` (
			dos_id, dos_date, dos_statut, tydo_id, ogd_id,
			dos_cree_par, dos_date_creation, dos_imputation,
			loc_code, dos_perso_nom, dos_perso_prenom, dos_certif_ind,
			dos_typ_saisie, opv_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.ExecContext(ctx, query,
		c.ID,
		c.Date,
		c.Status,
		c.Type,
		c.OgdID,
		survey.Truncate(c.CreatedBy, widthCreatedBy),
		c.CreatedAt,
		c.Imputation,
		c.LocationID,
		survey.Truncate(c.HeadName, widthCaseName),
		survey.Truncate(c.HeadFirst, widthCaseFirstName),
		survey.Truncate(c.Certificate, widthCertificate),
		c.EntryType,
		c.OPVCode,
	)
	if err != nil {
		return &domain.InsertError{Table: TableCases, Err: err}
	}
	return nil
}

// InsertPerson inserts a household member and returns its generated PERSO_ID
func (s *Session) InsertPerson(ctx context.Context, p *domain.PersonRecord) (int64, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, &domain.InsertError{Table: TablePersons, Err: err}
	}
	query := `
		INSERT INTO ` + TablePersons + ` (
			ogd_id, dos_id,
			perso_civilite, perso_nom, perso_prenom, perso_sexe,
			perso_date_naissance, perso_localite_naissance,
			perso_sit_mat, perso_nationalite, perso_pays_naissance,
			perso_nom_pere, perso_nom_mere, perso_relation,
			perso_type_perso,
			perso_adr_region_district, perso_adr_localite,
			perso_adr_quartier, perso_adr_tel, perso_nina,
			perso_etat_validation,
			perso_prenom_pere, perso_prenom_mere,
			perso_saisie_par, perso_saisie_date,
			perso_perso_id, perso_etat_immatriculation
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		RETURNING perso_id
	`
	var id int64
	err = tx.QueryRowContext(ctx, query,
		p.OgdID,
		p.CaseID,
		p.Civility,
		capped(p.Name, widthPersonName),
		capped(p.FirstName, widthPersonFirst),
		p.Sex,
		nullable(p.BirthDate),
		nullable(p.BirthLocationID),
		p.MaritalStatus,
		survey.Truncate(p.Nationality, widthNationality),
		p.BirthCountry, // fixed 3-letter code, stored whole
		capped(p.FatherName, widthParentName),
		capped(p.MotherName, widthParentName),
		p.Relation,
		p.PersonType,
		nullable(p.AddressDistrictID),
		nullable(p.AddressLocalityID),
		capped(p.AddressQuarter, widthQuarter),
		capped(p.Phone, widthPhone),
		capped(p.NINA, widthNINA),
		p.ValidationState,
		capped(p.FatherFirstName, widthParentName),
		capped(p.MotherFirstName, widthParentName),
		survey.Truncate(p.CreatedBy, widthCreatedBy),
		p.CreatedAt,
		nullable(p.HeadID),
		p.RegistrationState,
	).Scan(&id)
	if err != nil {
		return 0, &domain.InsertError{Table: TablePersons, Err: err}
	}
	p.ID = id
	return id, nil
}

// InsertAttachment inserts a supporting document row
func (s *Session) InsertAttachment(ctx context.Context, a *domain.AttachmentRecord) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return &domain.InsertError{Table: TableAttachments, Err: err}
	}
	query := `
		INSERT INTO ` + TableAttachments + ` (
			perso_id, pj_id, ppj_date_deb, dos_id,
			ppj_num_piece, ppj_delivre_par,
			ppj_validite, ppj_date_fin
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		a.PersonID,
		string(a.Kind),
		a.StartDate,
		a.CaseID,
		capped(a.Number, widthDocumentNumber),
		capped(a.IssuedBy, widthIssuedBy),
		a.Validity,
		nullable(a.EndDate),
	)
	if err != nil {
		return &domain.InsertError{Table: TableAttachments, Err: err}
	}
	return nil
}

// Commit makes every statement since the last Commit durable. A failed
// commit leaves no open transaction.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

// Rollback discards every statement since the last Commit
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Close rolls back pending work and releases the connection
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if err := s.Rollback(); err != nil {
		s.logger.Warn("Rollback on close failed", zap.Error(err))
	}
	s.closed = true
	return s.conn.Close()
}

func capped(v *string, width int) any {
	return nullable(survey.Cap(v, width))
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
