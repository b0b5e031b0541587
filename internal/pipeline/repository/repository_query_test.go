package repository

import (
	"errors"
	"strings"
	"testing"

	"talent_pipeline_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

func requireFragments(t *testing.T, name, query string, fragments ...string) {
	t.Helper()
	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	for _, fragment := range fragments {
		if !strings.Contains(q, fragment) {
			t.Fatalf("%s: expected query fragment %q", name, fragment)
		}
	}
}

func TestUpdatesAreVersionGuarded(t *testing.T) {
	requireFragments(t, "update opportunity", updateOpportunityQuery,
		"where id = $1 and version = $2",
		"version = version + 1",
	)
	requireFragments(t, "update task assignment", updateAssignmentQuery,
		"where id = $1 and version = $2",
		"version = version + 1",
	)
}

func TestCommandReadsLockRows(t *testing.T) {
	requireFragments(t, "lock opportunity", lockOpportunityQuery, "for update")
	requireFragments(t, "lock active assignments", lockActiveAssignmentsQuery,
		"a.status = 'active'",
		"for update of a",
	)
}

func TestUpdateOpportunityLeavesSyncColumnsAlone(t *testing.T) {
	q := strings.ToLower(updateOpportunityQuery)
	set := q[:strings.Index(q, "where")]
	for _, column := range []string{"external_id =", "last_synced_at =", "last_sync_error ="} {
		if strings.Contains(set, column) {
			t.Fatalf("workflow update must not write %s", column)
		}
	}
}

func TestOpportunityWriteErrorMapsOpenPairViolation(t *testing.T) {
	violation := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "idx_pipeline_opportunities_open_candidate_job"}

	for _, op := range []string{"create opportunity", "update opportunity"} {
		err := opportunityWriteError(op, violation)
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("%s: expected conflict, got %v", op, err)
		}
	}

	cause := errors.New("connection reset")
	err := opportunityWriteError("update opportunity", cause)
	if apperr.GetKind(err) != apperr.KindUnknown || !errors.Is(err, cause) {
		t.Fatalf("expected other errors to be wrapped untyped, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "update opportunity: ") {
		t.Fatalf("expected operation prefix, got %q", err.Error())
	}
}

func TestListReportingQueryFiltersByListAndOptionalTask(t *testing.T) {
	requireFragments(t, "list assignments for list", listAssignmentsForListQuery,
		"a.related_list_id = $1",
		"($2::uuid is null or a.task_id = $2)",
		"order by a.activated_at, a.id",
	)
}
