// Package cleanup purges keyword-marked test data across the schema. Rows
// whose declared text fields contain the keyword are hard-deleted in
// child-first order; matching users lose their memberships and are
// deactivated rather than deleted.
package cleanup

import (
	"context"
	"fmt"
	"strings"

	"makerflow/backend/internal/ledger"
	"makerflow/backend/internal/ledger/domain"
	"makerflow/backend/internal/platform/actor"
	"makerflow/backend/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// purgeTarget names a table and the text fields searched for the keyword.
type purgeTarget struct {
	table  string
	fields []string
}

// purgeTargets is ordered child-first so foreign keys never block a delete.
var purgeTargets = []purgeTarget{
	{table: "tasks", fields: []string{"title", "description"}},
	{table: "projects", fields: []string{"name", "description", "tags"}},
	{table: "intake_requests", fields: []string{"title", "requestor_name", "requestor_email", "details"}},
	{table: "equipment_assets", fields: []string{"name", "notes", "cert_name"}},
	{table: "consumables", fields: []string{"name", "notes"}},
	{table: "partnerships", fields: []string{"partner_name", "contact_name", "contact_email", "notes"}},
}

var userMatchFields = []string{"email", "name"}

// Service runs keyword purges.
type Service struct {
	runner store.Runner
	tracer trace.Tracer
}

// NewService builds a cleanup service.
func NewService(runner store.Runner) *Service {
	return &Service{runner: runner, tracer: otel.Tracer("makerflow/cleanup")}
}

// PurgeByKeyword removes all rows in the organization whose marked fields
// contain keyword and returns per-table removal counts. Matching users are
// handled by cascade: their memberships in the organization are removed and,
// when no memberships remain anywhere, the user is deactivated. Superusers
// are never deactivated. With dryRun set nothing is changed and no ledger
// entry is written; the counts report what a real run would remove.
func (s *Service) PurgeByKeyword(ctx context.Context, tenantID int64, act actor.Actor, keyword string, dryRun bool) (map[string]int64, error) {
	ctx, span := s.tracer.Start(ctx, "cleanup.PurgeByKeyword", trace.WithAttributes(
		attribute.String("keyword", keyword),
		attribute.Bool("dry_run", dryRun),
	))
	defer span.End()

	counts := make(map[string]int64, len(purgeTargets)+2)
	err := s.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		for _, target := range purgeTargets {
			ids, err := u.Records().MatchingIDs(ctx, target.table, &tenantID, target.fields, keyword)
			if err != nil {
				return err
			}
			counts[target.table] = int64(len(ids))
			if dryRun || len(ids) == 0 {
				continue
			}
			if _, err := u.Records().DeleteByIDs(ctx, target.table, ids); err != nil {
				return err
			}
		}

		if err := s.purgeUsers(ctx, u, tenantID, keyword, dryRun, counts); err != nil {
			return err
		}

		if dryRun {
			return nil
		}
		_, err := u.Ledger().Record(ctx, ledger.RecordInput{
			TenantID: &tenantID,
			ActorID:  act.IDPtr(),
			Action:   domain.ActionTestDataPurged,
			Summary:  fmt.Sprintf("keyword=%q %s", keyword, Summarize(counts)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// purgeUsers cascades the keyword match onto users. Users are never deleted;
// membership rows in the organization go away and users left with no
// memberships anywhere are deactivated, superusers excepted.
func (s *Service) purgeUsers(ctx context.Context, u store.Unit, tenantID int64, keyword string, dryRun bool, counts map[string]int64) error {
	userIDs, err := u.Records().MatchingIDs(ctx, "users", nil, userMatchFields, keyword)
	if err != nil {
		return err
	}

	var membershipsRemoved, usersDeactivated int64
	for _, userID := range userIDs {
		inOrg, err := u.Records().CountWhere(ctx, "memberships", &tenantID, "user_id", userID)
		if err != nil {
			return err
		}
		total, err := u.Records().CountWhere(ctx, "memberships", nil, "user_id", userID)
		if err != nil {
			return err
		}

		if dryRun {
			membershipsRemoved += inOrg
			if total-inOrg == 0 {
				deactivated, err := wouldDeactivate(ctx, u, userID)
				if err != nil {
					return err
				}
				if deactivated {
					usersDeactivated++
				}
			}
			continue
		}

		removed, err := u.Records().DeleteWhere(ctx, "memberships", &tenantID, "user_id", userID)
		if err != nil {
			return err
		}
		membershipsRemoved += removed

		remaining, err := u.Records().CountWhere(ctx, "memberships", nil, "user_id", userID)
		if err != nil {
			return err
		}
		if remaining != 0 {
			continue
		}
		deactivate, err := wouldDeactivate(ctx, u, userID)
		if err != nil {
			return err
		}
		if !deactivate {
			continue
		}
		if _, err := u.Records().UpdateFields(ctx, "users", userID, nil, domain.Snapshot{"is_active": false}); err != nil {
			return err
		}
		usersDeactivated++
	}

	counts["memberships"] = membershipsRemoved
	counts["users"] = usersDeactivated
	return nil
}

// wouldDeactivate reports whether the user is an active non-superuser.
func wouldDeactivate(ctx context.Context, u store.Unit, userID int64) (bool, error) {
	row, err := u.Records().Get(ctx, "users", userID, nil)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	if super, _ := row["is_superuser"].(bool); super {
		return false, nil
	}
	active, _ := row["is_active"].(bool)
	return active, nil
}

// Summarize renders counts as "table:count, ..." in purge order, memberships
// and users last. Tables with zero removals are skipped; an empty result
// becomes "nothing matched".
func Summarize(counts map[string]int64) string {
	var parts []string
	for _, target := range purgeTargets {
		if n := counts[target.table]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", target.table, n))
		}
	}
	for _, table := range []string{"memberships", "users"} {
		if n := counts[table]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", table, n))
		}
	}
	if len(parts) == 0 {
		return "nothing matched"
	}
	return strings.Join(parts, ", ")
}
