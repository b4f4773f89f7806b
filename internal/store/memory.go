package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"makerflow/backend/internal/ledger"
	"makerflow/backend/internal/ledger/domain"
	"makerflow/backend/internal/registry"
)

// Memory is an in-memory Runner for tests. Tables are declared up front with
// their column lists; RunTx snapshots all state before running fn and
// restores it when fn fails, mirroring transaction rollback. The ledger side
// reuses the real Recorder over an in-memory repository, so reversal
// metadata behaves exactly as in production.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable

	ledgerRepo   *memLedgerRepo
	allow        *registry.AllowList
	source       string
	summaryLimit int
}

type memTable struct {
	cols   []string
	rows   map[int64]domain.Snapshot
	nextID int64
}

// NewMemory builds an empty in-memory runner.
func NewMemory(allow *registry.AllowList, source string, summaryLimit int) *Memory {
	return &Memory{
		tables:       make(map[string]*memTable),
		ledgerRepo:   &memLedgerRepo{},
		allow:        allow,
		source:       source,
		summaryLimit: summaryLimit,
	}
}

// AddTable declares a table and its columns.
func (m *Memory) AddTable(name string, cols ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = &memTable{
		cols:   append([]string(nil), cols...),
		rows:   make(map[int64]domain.Snapshot),
		nextID: 1,
	}
}

// SeedRow inserts a row directly, assigning an id when none is given, and
// returns the row's id.
func (m *Memory) SeedRow(table string, fields domain.Snapshot) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[table].insert(fields)
}

// Row returns a copy of the row, or nil when absent.
func (m *Memory) Row(table string, id int64) domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	return t.rows[id].Clone()
}

// Entries returns all ledger entries written so far, oldest first.
func (m *Memory) Entries() []*domain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Entry(nil), m.ledgerRepo.entries...)
}

// RunTx runs fn against the live state under the store lock. On error all
// tables and the ledger are restored to their pre-fn contents.
func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[string]map[int64]domain.Snapshot, len(m.tables))
	savedNext := make(map[string]int64, len(m.tables))
	for name, t := range m.tables {
		rows := make(map[int64]domain.Snapshot, len(t.rows))
		for id, row := range t.rows {
			rows[id] = row.Clone()
		}
		saved[name] = rows
		savedNext[name] = t.nextID
	}
	savedEntries := append([]*domain.Entry(nil), m.ledgerRepo.entries...)

	unit := &memUnit{
		records: &memRecords{m: m},
		ledger:  ledger.NewRecorder(m.ledgerRepo, m.allow, m.source, m.summaryLimit),
	}
	if err := fn(ctx, unit); err != nil {
		for name, rows := range saved {
			m.tables[name].rows = rows
			m.tables[name].nextID = savedNext[name]
		}
		m.ledgerRepo.entries = savedEntries
		return err
	}
	return nil
}

type memUnit struct {
	records *memRecords
	ledger  *ledger.Recorder
}

func (u *memUnit) Records() Records { return u.records }
func (u *memUnit) Ledger() Ledger   { return u.ledger }

func (t *memTable) insert(fields domain.Snapshot) int64 {
	row := fields.Clone()
	id, ok := row["id"].(int64)
	if !ok || id == 0 {
		id = t.nextID
		row["id"] = id
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	t.rows[id] = row
	return id
}

func rowMatchesTenant(row domain.Snapshot, tenantID *int64) bool {
	if tenantID == nil {
		return true
	}
	org, ok := row["organization_id"].(int64)
	return ok && org == *tenantID
}

type memRecords struct {
	m *Memory
}

func (r *memRecords) table(name string) *memTable {
	return r.m.tables[name]
}

func (r *memRecords) Columns(_ context.Context, table string) ([]string, error) {
	t := r.table(table)
	if t == nil {
		return nil, nil
	}
	return append([]string(nil), t.cols...), nil
}

func (r *memRecords) Get(_ context.Context, table string, id int64, tenantID *int64) (domain.Snapshot, error) {
	t := r.table(table)
	if t == nil {
		return nil, nil
	}
	row, ok := t.rows[id]
	if !ok || !rowMatchesTenant(row, tenantID) {
		return nil, nil
	}
	return row.Clone(), nil
}

func (r *memRecords) Insert(_ context.Context, table string, fields domain.Snapshot) error {
	r.table(table).insert(fields)
	return nil
}

func (r *memRecords) UpdateFields(_ context.Context, table string, id int64, tenantID *int64, fields domain.Snapshot) (bool, error) {
	t := r.table(table)
	if t == nil {
		return false, nil
	}
	row, ok := t.rows[id]
	if !ok || !rowMatchesTenant(row, tenantID) {
		return false, nil
	}
	for k, v := range fields {
		row[k] = v
	}
	return true, nil
}

func (r *memRecords) Delete(_ context.Context, table string, id int64, tenantID *int64) (bool, error) {
	t := r.table(table)
	if t == nil {
		return false, nil
	}
	row, ok := t.rows[id]
	if !ok || !rowMatchesTenant(row, tenantID) {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

func (r *memRecords) ListDeleted(_ context.Context, table string, tenantID int64, limit int32) ([]domain.Snapshot, error) {
	t := r.table(table)
	if t == nil {
		return nil, nil
	}
	var out []domain.Snapshot
	for _, row := range t.rows {
		if !rowMatchesTenant(row, &tenantID) {
			continue
		}
		if row["deleted_at"] == nil {
			continue
		}
		out = append(out, row.Clone())
	}
	// RFC 3339 strings sort chronologically.
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i]["deleted_at"].(string)
		b, _ := out[j]["deleted_at"].(string)
		if a != b {
			return a > b
		}
		ai, _ := out[i]["id"].(int64)
		bi, _ := out[j]["id"].(int64)
		return ai > bi
	})
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRecords) MatchingIDs(_ context.Context, table string, tenantID *int64, fields []string, keyword string) ([]int64, error) {
	t := r.table(table)
	if t == nil {
		return nil, nil
	}
	needle := strings.ToLower(keyword)
	var ids []int64
	for id, row := range t.rows {
		if !rowMatchesTenant(row, tenantID) {
			continue
		}
		for _, f := range fields {
			s, ok := row[f].(string)
			if ok && strings.Contains(strings.ToLower(s), needle) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memRecords) DeleteByIDs(_ context.Context, table string, ids []int64) (int64, error) {
	t := r.table(table)
	if t == nil {
		return 0, nil
	}
	var n int64
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memRecords) DeleteWhere(_ context.Context, table string, tenantID *int64, field string, value any) (int64, error) {
	t := r.table(table)
	if t == nil {
		return 0, nil
	}
	var n int64
	for id, row := range t.rows {
		if !rowMatchesTenant(row, tenantID) {
			continue
		}
		if row[field] == value {
			delete(t.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memRecords) CountWhere(_ context.Context, table string, tenantID *int64, field string, value any) (int64, error) {
	t := r.table(table)
	if t == nil {
		return 0, nil
	}
	var n int64
	for _, row := range t.rows {
		if !rowMatchesTenant(row, tenantID) {
			continue
		}
		if row[field] == value {
			n++
		}
	}
	return n, nil
}

type memLedgerRepo struct {
	entries []*domain.Entry
	nextID  int64
}

func (r *memLedgerRepo) Create(_ context.Context, entry *domain.Entry) error {
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLedgerRepo) GetByIDForTenant(_ context.Context, id int64, tenantID int64) (*domain.Entry, error) {
	for _, e := range r.entries {
		if e.ID == id && e.TenantID != nil && *e.TenantID == tenantID {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memLedgerRepo) ListByTenant(_ context.Context, tenantID int64, limit, offset int32) ([]*domain.Entry, error) {
	var out []*domain.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TenantID != nil && *e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	if offset > 0 {
		if int32(len(out)) <= offset {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
