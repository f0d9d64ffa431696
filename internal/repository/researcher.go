package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/normalize"
)

// ListFilter narrows and orders a researcher listing.
type ListFilter struct {
	Query  string // matched against names, institution and email
	Sort   string // "newest" (default), "oldest" or "name"
	Limit  int    // 0 = no limit
	Offset int
}

type ResearcherRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, cv *entity.StructuredCV, src entity.Source) (*entity.Researcher, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Researcher, error)
	List(ctx context.Context, f ListFilter) ([]entity.ResearcherSummary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type researcherRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewResearcherRepository(db *DB, logger *slog.Logger) ResearcherRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &researcherRepository{db: db, logger: logger, now: time.Now}
}

func (r *researcherRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *researcherRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	email = normalize.Email(email)
	if email == "" {
		return false, nil
	}
	query, args := r.builder().
		Select("id").
		From(entsql.Table("researchers")).
		Where(entsql.EQ("email", email)).
		Limit(1).
		Query()
	var id string
	err := r.db.SQL().QueryRowContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		r.logger.Error("failed to check researcher email", "error", err)
		return false, dbErr("exists by email", err)
	}
	return true, nil
}

// Create stores the researcher and all child collections in one transaction.
func (r *researcherRepository) Create(ctx context.Context, cv *entity.StructuredCV, src entity.Source) (*entity.Researcher, error) {
	start := time.Now()
	var email *string
	if cv.Personal.Email != nil {
		email = entity.Str(normalize.Email(*cv.Personal.Email))
	}
	if email != nil {
		exists, err := r.ExistsByEmail(ctx, *email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &common.DuplicateError{Entity: "researcher", Key: *email}
		}
	}

	interests, err := json.Marshal(nonNil(cv.Personal.ResearchInterests))
	if err != nil {
		return nil, fmt.Errorf("encode research interests: %w", err)
	}
	rec := &entity.Researcher{
		ID:          uuid.New(),
		Email:       email,
		SourceName:  src.Name,
		ContentHash: src.ContentHash,
		CreatedAt:   r.now().UTC().Truncate(time.Millisecond),
		CV:          *cv,
	}
	rec.CV.Personal.Email = email
	rec.CV.EnsureCollections()
	p := rec.CV.Personal

	tx, err := r.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args := r.builder().Insert("researchers").
		Columns(researcherColumns...).
		Values(rec.ID.String(), email, p.FirstName, p.LastName, p.DateOfBirth, p.Nationality, p.Phone,
			p.CurrentPosition, p.Institution, p.Department, string(interests),
			src.Name, src.ContentHash, rec.CreatedAt.UnixMilli()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, r.insertErr(email, err)
	}

	rows := 0
	for _, c := range children {
		for i, vals := range c.rows(&rec.CV) {
			cols := append([]string{"id", "researcher_id", "seq"}, c.names()...)
			values := append([]any{uuid.New().String(), rec.ID.String(), i}, vals...)
			query, args := r.builder().Insert(c.table).Columns(cols...).Values(values...).Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				r.logger.Error("failed to insert researcher child", "table", c.table, "index", i, "error", err)
				return nil, dbErr("insert "+c.table, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, r.insertErr(email, err)
	}
	r.logger.Info("repo.researcher.create",
		"researcher_id", rec.ID,
		"child_rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (r *researcherRepository) insertErr(email *string, err error) error {
	if isUniqueViolation(err) {
		return &common.DuplicateError{Entity: "researcher", Key: entity.Deref(email), Cause: err}
	}
	r.logger.Error("failed to insert researcher", "error", err)
	return dbErr("insert researcher", err)
}

func (r *researcherRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Researcher, error) {
	query, args := r.builder().
		Select(researcherColumns...).
		From(entsql.Table("researchers")).
		Where(entsql.EQ("id", id.String())).
		Query()
	rec, err := scanResearcher(r.db.SQL().QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("researcher %s", id), common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get researcher", "researcher_id", id, "error", err)
		return nil, dbErr("get researcher", err)
	}

	for _, c := range children {
		query, args := r.builder().
			Select(c.names()...).
			From(entsql.Table(c.table)).
			Where(entsql.EQ("researcher_id", id.String())).
			OrderBy("seq").
			Query()
		rows, err := r.db.SQL().QueryContext(ctx, query, args...)
		if err != nil {
			return nil, dbErr("load "+c.table, err)
		}
		for rows.Next() {
			if err := c.load(&rec.CV, rows.Scan); err != nil {
				_ = rows.Close()
				return nil, dbErr("scan "+c.table, err)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, dbErr("load "+c.table, err)
		}
	}
	rec.CV.EnsureCollections()
	return rec, nil
}

func (r *researcherRepository) List(ctx context.Context, f ListFilter) ([]entity.ResearcherSummary, error) {
	sel := r.builder().
		Select("id", "email", "first_name", "last_name", "institution", "current_position", "source_name", "created_at").
		From(entsql.Table("researchers"))
	if q := strings.TrimSpace(f.Query); q != "" {
		sel.Where(entsql.Or(
			entsql.ContainsFold("first_name", q),
			entsql.ContainsFold("last_name", q),
			entsql.ContainsFold("institution", q),
			entsql.ContainsFold("email", q),
		))
	}
	switch f.Sort {
	case "name":
		sel.OrderBy("last_name", "first_name")
	case "oldest":
		sel.OrderBy("created_at")
	default:
		sel.OrderBy(entsql.Desc("created_at"))
	}
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}

	query, args := sel.Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list researchers", "error", err)
		return nil, dbErr("list researchers", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out []entity.ResearcherSummary
		ids []any
	)
	for rows.Next() {
		var (
			s                           entity.ResearcherSummary
			id                          string
			first, last, inst, position sql.NullString
			created                     int64
		)
		if err := rows.Scan(&id, &s.Email, &first, &last, &inst, &position, &s.SourceName, &created); err != nil {
			return nil, dbErr("scan researcher", err)
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, dbErr("scan researcher", err)
		}
		s.FirstName, s.LastName, s.Institution, s.CurrentPosition = first.String, last.String, inst.String, position.String
		s.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, s)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("list researchers", err)
	}
	if len(out) == 0 {
		return []entity.ResearcherSummary{}, nil
	}

	counts, err := r.publicationCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	degrees, err := r.latestDegreeYears(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		id := out[i].ID.String()
		out[i].PublicationCount = counts[id]
		out[i].LatestDegreeYear = degrees[id]
	}
	return out, nil
}

func (r *researcherRepository) publicationCounts(ctx context.Context, ids []any) (map[string]int, error) {
	query, args := r.builder().
		Select("researcher_id", entsql.Count("*")).
		From(entsql.Table("publications")).
		Where(entsql.In("researcher_id", ids...)).
		GroupBy("researcher_id").
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("count publications", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]int, len(ids))
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, dbErr("count publications", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// latestDegreeYears returns the most recent education end year per researcher.
func (r *researcherRepository) latestDegreeYears(ctx context.Context, ids []any) (map[string]*int, error) {
	query, args := r.builder().
		Select("researcher_id", "end_date").
		From(entsql.Table("education")).
		Where(entsql.And(entsql.In("researcher_id", ids...), entsql.NotNull("end_date"))).
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("load degree years", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]*int, len(ids))
	for rows.Next() {
		var id, end string
		if err := rows.Scan(&id, &end); err != nil {
			return nil, dbErr("load degree years", err)
		}
		y := normalize.Year(&end)
		if y == nil {
			continue
		}
		if cur := out[id]; cur == nil || *y > *cur {
			out[id] = y
		}
	}
	return out, rows.Err()
}

// Delete removes the researcher and its child rows.
func (r *researcherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range children {
		query, args := r.builder().Delete(c.table).Where(entsql.EQ("researcher_id", id.String())).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return dbErr("delete "+c.table, err)
		}
	}
	query, args := r.builder().Delete("researchers").Where(entsql.EQ("id", id.String())).Query()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return dbErr("delete researcher", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", fmt.Sprintf("researcher %s", id), common.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("delete researcher", err)
	}
	r.logger.Info("repo.researcher.delete", "researcher_id", id)
	return nil
}

func scanResearcher(scan func(dest ...any) error) (*entity.Researcher, error) {
	var (
		rec       entity.Researcher
		id        string
		interests sql.NullString
		hash      sql.NullString
		created   int64
	)
	p := &rec.CV.Personal
	err := scan(&id, &rec.Email, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Nationality, &p.Phone,
		&p.CurrentPosition, &p.Institution, &p.Department, &interests,
		&rec.SourceName, &hash, &created)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if interests.Valid && interests.String != "" {
		if err := json.Unmarshal([]byte(interests.String), &p.ResearchInterests); err != nil {
			return nil, fmt.Errorf("decode research interests: %w", err)
		}
	}
	p.Email = rec.Email
	rec.ContentHash = hash.String
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrDatabase, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
