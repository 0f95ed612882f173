package sqldb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want constraint
	}{
		{"nil", nil, noConstraint},
		{"plain error", errors.New("connection reset"), noConstraint},
		{"sqlite unique text", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), uniqueConstraint},
		{"sqlite fk text", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), foreignKeyConstraint},
		{"sqlite check text", errors.New("CHECK constraint failed: rating"), checkConstraint},
		{"pq unique", &pq.Error{Code: pgUniqueViolation}, uniqueConstraint},
		{"pq fk wrapped", fmt.Errorf("sqldb: inserting: %w", &pq.Error{Code: pgForeignKeyViolation}), foreignKeyConstraint},
		{"pq check", &pq.Error{Code: pgCheckViolation}, checkConstraint},
		{"pq other", &pq.Error{Code: "42P01", Message: "relation does not exist"}, noConstraint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
