// Package registry declares the entity types that participate in the
// soft-delete lifecycle and the per-entity policies that drive it. The
// registry is the single source of truth for which tables the rollback
// engine may touch.
package registry

import "sort"

// EntityType identifies a lifecycle-managed entity kind as used in API
// parameters and CLI flags.
type EntityType string

const (
	EntityTask        EntityType = "task"
	EntityProject     EntityType = "project"
	EntityIntake      EntityType = "intake"
	EntityAsset       EntityType = "asset"
	EntityConsumable  EntityType = "consumable"
	EntityPartnership EntityType = "partnership"
)

// DeletePolicy describes how one entity kind is soft-deleted, restored and
// purged. TitleField and StatusField name the columns shown in trash
// listings; UpdatedField is the column checked for conflicts on strict
// rollback. When ReadyStatuses is non-empty the row must be in one of those
// statuses before a soft delete is accepted.
type DeletePolicy struct {
	Label         string
	Table         string
	TitleField    string
	StatusField   string
	UpdatedField  string
	MinRole       string
	ReadyStatuses []string
}

// Registry maps entity types to their delete policies.
type Registry struct {
	policies map[EntityType]DeletePolicy
}

// New builds a registry from the given policy map.
func New(policies map[EntityType]DeletePolicy) *Registry {
	return &Registry{policies: policies}
}

// PolicyFor returns the policy for the given entity type. The second return
// is false when the entity type is not registered.
func (r *Registry) PolicyFor(entity EntityType) (DeletePolicy, bool) {
	p, ok := r.policies[entity]
	return p, ok
}

// Types returns the registered entity types sorted by name.
func (r *Registry) Types() []EntityType {
	out := make([]EntityType, 0, len(r.policies))
	for t := range r.policies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Default returns the registry covering the six managed entity kinds.
func Default() *Registry {
	return New(map[EntityType]DeletePolicy{
		EntityTask: {
			Label: "Task", Table: "tasks",
			TitleField: "title", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "student",
		},
		EntityProject: {
			Label: "Project", Table: "projects",
			TitleField: "name", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "staff",
		},
		EntityIntake: {
			Label: "Intake Request", Table: "intake_requests",
			TitleField: "title", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "staff",
		},
		EntityAsset: {
			Label: "Equipment Asset", Table: "equipment_assets",
			TitleField: "name", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "manager", ReadyStatuses: []string{"Retired"},
		},
		EntityConsumable: {
			Label: "Consumable", Table: "consumables",
			TitleField: "name", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "staff",
		},
		EntityPartnership: {
			Label: "Partnership", Table: "partnerships",
			TitleField: "partner_name", StatusField: "stage", UpdatedField: "updated_at",
			MinRole: "manager", ReadyStatuses: []string{"Dormant"},
		},
	})
}

// AllowList is the closed set of tables the rollback engine may mutate.
type AllowList struct {
	tables map[string]struct{}
}

// NewAllowList builds an allow list from table names.
func NewAllowList(tables ...string) *AllowList {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return &AllowList{tables: set}
}

// Contains reports whether the table is on the allow list.
func (a *AllowList) Contains(table string) bool {
	_, ok := a.tables[table]
	return ok
}

// Tables returns the allow-listed table names sorted.
func (a *AllowList) Tables() []string {
	out := make([]string, 0, len(a.tables))
	for t := range a.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultAllowList covers the tables of the lifecycle-managed entity kinds.
func DefaultAllowList() *AllowList {
	return NewAllowList(
		"tasks",
		"projects",
		"intake_requests",
		"equipment_assets",
		"consumables",
		"partnerships",
	)
}
