package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/uniplaces/carbon"

	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/ports"
)

const (
	rawTable       = "raw_papers"
	processedTable = "processed_papers"
)

var (
	rawColumns       = coalesced("", "doi", "title", "abstract", "publish_date", "url", "authors", "tags", "journal", "abstract_source")
	processedColumns = append(coalesced("", "doi", "title", "abstract", "publish_date", "url", "authors", "tags", "journal"),
		coalesced("", "title_cn", "interpretation_cn", "subject")...)
)

// Dialect captures what differs between the supported SQL backends.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// Like builds a case-insensitive pattern match.
	Like func(column, pattern string) sq.Sqlizer
}

// Postgres uses $n placeholders and ILIKE.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	Like: func(column, pattern string) sq.Sqlizer {
		return sq.ILike{column: pattern}
	},
}

// MySQL uses ? placeholders; LIKE follows the column collation.
var MySQL = Dialect{
	Name:        "mysql",
	Placeholder: sq.Question,
	Like: func(column, pattern string) sq.Sqlizer {
		return sq.Like{column: pattern}
	},
}

// SQLCatalog persists papers in two tables keyed by DOI.
type SQLCatalog struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var _ ports.Catalog = (*SQLCatalog)(nil)

// NewSQLCatalog wires a sql.DB for the given dialect.
func NewSQLCatalog(db *sql.DB, dialect Dialect) *SQLCatalog {
	return &SQLCatalog{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
}

// Ping verifies the store is reachable.
func (c *SQLCatalog) Ping(ctx context.Context) error {
	if c.db == nil {
		return domain.ErrStoreUnavailable
	}
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// KnownDOIs returns every non-empty DOI present in the raw table.
func (c *SQLCatalog) KnownDOIs(ctx context.Context) (map[string]struct{}, error) {
	known := map[string]struct{}{}
	query, args, err := c.builder.Select("doi").From(rawTable).
		Where(sq.And{sq.NotEq{"doi": nil}, sq.NotEq{"doi": ""}}).ToSql()
	if err != nil {
		return known, fmt.Errorf("build known dois: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return known, fmt.Errorf("%w: query known dois: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var doi string
		if err := rows.Scan(&doi); err != nil {
			return map[string]struct{}{}, fmt.Errorf("scan doi: %w", err)
		}
		known[doi] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return map[string]struct{}{}, fmt.Errorf("rows iteration: %w", err)
	}
	return known, nil
}

// GetRaw loads one raw record.
func (c *SQLCatalog) GetRaw(ctx context.Context, doi string) (domain.RawPaper, error) {
	papers, err := c.selectRaw(ctx, c.builder.Select(rawColumns...).From(rawTable).Where(sq.Eq{"doi": doi}).Limit(1))
	if err != nil {
		return domain.RawPaper{}, err
	}
	if len(papers) == 0 {
		return domain.RawPaper{}, domain.ErrNotFound
	}
	return papers[0], nil
}

// UpsertRaw updates the record with the same DOI or inserts a new one.
// Records without a DOI are always inserted.
func (c *SQLCatalog) UpsertRaw(ctx context.Context, p domain.RawPaper) error {
	now := carbon.Now().DateTimeString()
	values := map[string]interface{}{
		"title":           p.Title,
		"abstract":        p.Abstract,
		"publish_date":    p.PublishDate,
		"url":             p.URL,
		"authors":         p.Authors,
		"tags":            p.Tags,
		"journal":         p.Journal,
		"abstract_source": p.AbstractSource,
	}
	return c.upsert(ctx, rawTable, p.DOI, rawOrder, values, now)
}

// UpsertProcessed updates the record with the same DOI or inserts a new one.
func (c *SQLCatalog) UpsertProcessed(ctx context.Context, p domain.ProcessedPaper) error {
	if !p.HasDOI() {
		return fmt.Errorf("upsert processed: %w", errMissingDOI)
	}
	now := carbon.Now().DateTimeString()
	values := map[string]interface{}{
		"title":             p.Title,
		"abstract":          p.Abstract,
		"publish_date":      p.PublishDate,
		"url":               p.URL,
		"authors":           p.Authors,
		"tags":              p.Tags,
		"journal":           p.Journal,
		"title_cn":          p.TitleCn,
		"interpretation_cn": p.InterpretationCn,
		"subject":           p.Subject,
	}
	return c.upsert(ctx, processedTable, p.DOI, processedOrder, values, now)
}

var (
	paperOrder     = []string{"title", "abstract", "publish_date", "url", "authors", "tags", "journal"}
	rawOrder       = append(append([]string{}, paperOrder...), "abstract_source")
	processedOrder = append(append([]string{}, paperOrder...), "title_cn", "interpretation_cn", "subject")
	errMissingDOI  = errors.New("paper has no doi")
)

// upsert runs SELECT COUNT then UPDATE or INSERT in one transaction. A unique
// violation on insert means a concurrent writer won, so the transaction is
// replayed once and takes the update branch.
func (c *SQLCatalog) upsert(ctx context.Context, table, doi string, order []string, values map[string]interface{}, now string) error {
	if c.db == nil {
		return domain.ErrStoreUnavailable
	}
	err := c.upsertTx(ctx, table, doi, order, values, now)
	if doi != "" && isUniqueViolation(err) {
		err = c.upsertTx(ctx, table, doi, order, values, now)
	}
	return err
}

func (c *SQLCatalog) upsertTx(ctx context.Context, table, doi string, order []string, values map[string]interface{}, now string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	exists := false
	if doi != "" {
		exists, err = c.exists(ctx, tx, table, doi)
		if err != nil {
			return err
		}
	}

	if exists {
		err = c.update(ctx, tx, table, doi, order, values, now)
	} else {
		err = c.insert(ctx, tx, table, doi, order, values, now)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func (c *SQLCatalog) exists(ctx context.Context, tx *sql.Tx, table, doi string) (bool, error) {
	query, args, err := c.builder.Select("COUNT(*)").From(table).Where(sq.Eq{"doi": doi}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build count: %w", err)
	}
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return count > 0, nil
}

func (c *SQLCatalog) update(ctx context.Context, tx *sql.Tx, table, doi string, order []string, values map[string]interface{}, now string) error {
	b := c.builder.Update(table)
	for _, col := range order {
		b = b.Set(col, values[col])
	}
	query, args, err := b.Set("updated_at", now).Where(sq.Eq{"doi": doi}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (c *SQLCatalog) insert(ctx context.Context, tx *sql.Tx, table, doi string, order []string, values map[string]interface{}, now string) error {
	columns := append([]string{"doi"}, order...)
	columns = append(columns, "created_at", "updated_at")

	row := make([]interface{}, 0, len(columns))
	row = append(row, nullable(doi))
	for _, col := range order {
		row = append(row, values[col])
	}
	row = append(row, now, now)

	query, args, err := c.builder.Insert(table).Columns(columns...).Values(row...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// GetUnprocessedRaw returns raw records whose DOI has no processed row.
func (c *SQLCatalog) GetUnprocessedRaw(ctx context.Context) ([]domain.RawPaper, error) {
	return c.selectRaw(ctx, c.builder.Select(coalesced("r.", "doi", "title", "abstract", "publish_date", "url", "authors", "tags", "journal", "abstract_source")...).
		From(rawTable+" r").
		LeftJoin(processedTable+" p ON r.doi = p.doi").
		Where(sq.And{sq.NotEq{"r.doi": nil}, sq.NotEq{"r.doi": ""}, sq.Eq{"p.doi": nil}}).
		OrderBy("r.id"))
}

// GetIncompleteProcessed returns processed records missing a derived field.
func (c *SQLCatalog) GetIncompleteProcessed(ctx context.Context) ([]domain.ProcessedPaper, error) {
	return c.selectProcessed(ctx, c.processedQuery().Where(sq.Or{
		sq.Expr("COALESCE(title_cn, '') = ''"),
		sq.Expr("COALESCE(interpretation_cn, '') = ''"),
		sq.Expr("COALESCE(tags, '') = ''"),
		sq.Expr("COALESCE(subject, '') = ''"),
	}).OrderBy("id"))
}

// GetAllProcessed returns the processed set, newest first.
func (c *SQLCatalog) GetAllProcessed(ctx context.Context) ([]domain.ProcessedPaper, error) {
	return c.selectProcessed(ctx, c.processedQuery().OrderBy("publish_date DESC", "doi"))
}

// GetByDOI returns one processed record or domain.ErrNotFound.
func (c *SQLCatalog) GetByDOI(ctx context.Context, doi string) (domain.ProcessedPaper, error) {
	papers, err := c.selectProcessed(ctx, c.processedQuery().Where(sq.Eq{"doi": doi}).Limit(1))
	if err != nil {
		return domain.ProcessedPaper{}, err
	}
	if len(papers) == 0 {
		return domain.ProcessedPaper{}, domain.ErrNotFound
	}
	return papers[0], nil
}

// SearchByKeyword matches the keyword against titles, abstracts, summaries,
// tags and authors.
func (c *SQLCatalog) SearchByKeyword(ctx context.Context, keyword string) ([]domain.ProcessedPaper, error) {
	pattern := "%" + keyword + "%"
	match := sq.Or{}
	for _, col := range searchColumns {
		match = append(match, c.dialect.Like(col, pattern))
	}
	return c.selectProcessed(ctx, c.processedQuery().Where(match).OrderBy("publish_date DESC", "doi"))
}

var searchColumns = []string{"title", "title_cn", "abstract", "interpretation_cn", "tags", "authors"}

// GetBySubject returns processed records of one subject.
func (c *SQLCatalog) GetBySubject(ctx context.Context, subject string) ([]domain.ProcessedPaper, error) {
	return c.selectProcessed(ctx, c.processedQuery().Where(sq.Eq{"subject": subject}).OrderBy("publish_date DESC", "doi"))
}

// ListSubjects returns the distinct subjects in use.
func (c *SQLCatalog) ListSubjects(ctx context.Context) ([]string, error) {
	subjects := []string{}
	query, args, err := c.builder.Select("DISTINCT subject").From(processedTable).
		Where(sq.And{sq.NotEq{"subject": nil}, sq.NotEq{"subject": ""}}).OrderBy("subject").ToSql()
	if err != nil {
		return subjects, fmt.Errorf("build subjects: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return subjects, fmt.Errorf("%w: query subjects: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return []string{}, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return []string{}, fmt.Errorf("rows iteration: %w", err)
	}
	return subjects, nil
}

// ExportSnapshot writes the processed set to the interchange file.
func (c *SQLCatalog) ExportSnapshot(ctx context.Context, path string) (int, error) {
	papers, err := c.GetAllProcessed(ctx)
	if err != nil {
		return 0, fmt.Errorf("export snapshot: %w", err)
	}
	return WriteSnapshot(path, papers)
}

func (c *SQLCatalog) processedQuery() sq.SelectBuilder {
	return c.builder.Select(processedColumns...).From(processedTable)
}

func (c *SQLCatalog) selectRaw(ctx context.Context, b sq.SelectBuilder) ([]domain.RawPaper, error) {
	papers := []domain.RawPaper{}
	query, args, err := b.ToSql()
	if err != nil {
		return papers, fmt.Errorf("build raw query: %w", err)
	}
	if c.db == nil {
		return papers, domain.ErrStoreUnavailable
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return papers, fmt.Errorf("%w: query raw: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.RawPaper
		if err := rows.Scan(&p.DOI, &p.Title, &p.Abstract, &p.PublishDate, &p.URL, &p.Authors, &p.Tags, &p.Journal, &p.AbstractSource); err != nil {
			return []domain.RawPaper{}, fmt.Errorf("scan raw: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return []domain.RawPaper{}, fmt.Errorf("rows iteration: %w", err)
	}
	return papers, nil
}

func (c *SQLCatalog) selectProcessed(ctx context.Context, b sq.SelectBuilder) ([]domain.ProcessedPaper, error) {
	papers := []domain.ProcessedPaper{}
	query, args, err := b.ToSql()
	if err != nil {
		return papers, fmt.Errorf("build processed query: %w", err)
	}
	if c.db == nil {
		return papers, domain.ErrStoreUnavailable
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return papers, fmt.Errorf("%w: query processed: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.ProcessedPaper
		if err := rows.Scan(&p.DOI, &p.Title, &p.Abstract, &p.PublishDate, &p.URL, &p.Authors, &p.Tags, &p.Journal,
			&p.TitleCn, &p.InterpretationCn, &p.Subject); err != nil {
			return []domain.ProcessedPaper{}, fmt.Errorf("scan processed: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return []domain.ProcessedPaper{}, fmt.Errorf("rows iteration: %w", err)
	}
	return papers, nil
}

func coalesced(prefix string, names ...string) []string {
	cols := make([]string, 0, len(names))
	for _, n := range names {
		cols = append(cols, fmt.Sprintf("COALESCE(%s%s, '')", prefix, n))
	}
	return cols
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
