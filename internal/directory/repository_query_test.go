package directory

import (
	"strings"
	"testing"
)

func TestListMembersQueryKeepsInsertionOrder(t *testing.T) {
	if !strings.Contains(listMembersQuery, "ORDER BY slc.added_at") {
		t.Fatalf("expected saved list members ordered by added_at, got %s", listMembersQuery)
	}
	if !strings.Contains(listMembersQuery, "slc.saved_list_id = $1") {
		t.Fatal("expected members filtered by list id")
	}
}

func TestUpdateStatusQueryOnlyTouchesStatus(t *testing.T) {
	for _, col := range []string{"status = $2", "status_comment = $3", "WHERE id = $1"} {
		if !strings.Contains(updateStatusQuery, col) {
			t.Errorf("expected %q in update query", col)
		}
	}
	if strings.Contains(updateStatusQuery, "candidate_number") {
		t.Error("status update must not rewrite candidate identity")
	}
}
