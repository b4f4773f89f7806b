// Package record provides generic, column-introspecting row access for the
// lifecycle, rollback and cleanup services. Table names are never caller
// input; they come from the entity registry or the rollback allow list, and
// column names come from the information schema or from stored snapshots of
// allow-listed tables. Values always travel as query parameters.
package record

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"makerflow/backend/internal/db"
	"makerflow/backend/internal/ledger/domain"
)

const deleteChunkSize = 250

// Store runs dynamic-column SQL against a DBTX.
type Store struct {
	db db.DBTX
}

// New builds a Store over the given querier.
func New(q db.DBTX) *Store {
	return &Store{db: q}
}

// quoteIdent double-quotes an identifier for safe interpolation. Identifiers
// only ever come from the registry, the information schema or stored
// snapshots, never from end users.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so a keyword like "sample_data" matches
// only the literal substring.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Columns returns the live column names of the table in ordinal order.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Get fetches the full row by id as a normalized snapshot. When tenantID is
// non-nil the row must belong to that organization. Returns nil when no row
// matches.
func (s *Store) Get(ctx context.Context, table string, id int64, tenantID *int64) (domain.Snapshot, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, quoteIdent(table))
	args := []any{id}
	if tenantID != nil {
		query += ` AND organization_id = $2`
		args = append(args, *tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = values[i]
	}
	return normalizeSnapshot(row), nil
}

// Insert writes a row with the given fields. Used by the rollback engine to
// re-create purged rows with their original ids.
func (s *Store) Insert(ctx context.Context, table string, fields domain.Snapshot) error {
	if len(fields) == 0 {
		return fmt.Errorf("insert %s: no fields", table)
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[c]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// UpdateFields sets the given fields on the row identified by id. Reports
// whether a row was updated.
func (s *Store) UpdateFields(ctx context.Context, table string, id int64, tenantID *int64, fields domain.Snapshot) (bool, error) {
	if len(fields) == 0 {
		return false, fmt.Errorf("update %s: no fields", table)
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
		args = append(args, fields[c])
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		quoteIdent(table), strings.Join(sets, ", "), len(args))
	if tenantID != nil {
		args = append(args, *tenantID)
		query += fmt.Sprintf(` AND organization_id = $%d`, len(args))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the row by id. Reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, table string, id int64, tenantID *int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quoteIdent(table))
	args := []any{id}
	if tenantID != nil {
		query += ` AND organization_id = $2`
		args = append(args, *tenantID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListDeleted returns soft-deleted rows of the table for the organization,
// most recently deleted first.
func (s *Store) ListDeleted(ctx context.Context, table string, tenantID int64, limit int32) ([]domain.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE organization_id = $1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC
		LIMIT $2`, quoteIdent(table))

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deleted %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []domain.Snapshot
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, normalizeSnapshot(row))
	}
	return out, rows.Err()
}

// MatchingIDs returns ids of rows where any of the given text fields contains
// the keyword as a literal, case-insensitive substring; LIKE wildcards in the
// keyword carry no special meaning. When tenantID is non-nil only rows of
// that organization match.
func (s *Store) MatchingIDs(ctx context.Context, table string, tenantID *int64, fields []string, keyword string) ([]int64, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	args := []any{pattern}
	conds := make([]string, len(fields))
	for i, f := range fields {
		conds[i] = fmt.Sprintf(`LOWER(COALESCE(%s, '')) LIKE $1 ESCAPE '\'`, quoteIdent(f))
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE (%s)`,
		quoteIdent(table), strings.Join(conds, " OR "))
	if tenantID != nil {
		args = append(args, *tenantID)
		query += fmt.Sprintf(` AND organization_id = $%d`, len(args))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("matching ids %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByIDs hard-deletes the given rows in chunks and returns the number
// of rows removed.
func (s *Store) DeleteByIDs(ctx context.Context, table string, ids []int64) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`,
			quoteIdent(table), strings.Join(placeholders, ", "))
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("delete by ids %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DeleteWhere hard-deletes rows where field equals value and returns the
// number of rows removed.
func (s *Store) DeleteWhere(ctx context.Context, table string, tenantID *int64, field string, value any) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, quoteIdent(table), quoteIdent(field))
	args := []any{value}
	if tenantID != nil {
		args = append(args, *tenantID)
		query += fmt.Sprintf(` AND organization_id = $%d`, len(args))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete where %s: %w", table, err)
	}
	return res.RowsAffected()
}

// CountWhere counts rows where field equals value.
func (s *Store) CountWhere(ctx context.Context, table string, tenantID *int64, field string, value any) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, quoteIdent(table), quoteIdent(field))
	args := []any{value}
	if tenantID != nil {
		args = append(args, *tenantID)
		query += fmt.Sprintf(` AND organization_id = $%d`, len(args))
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count where %s: %w", table, err)
	}
	return n, nil
}
