package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSqlWithArgs(t *testing.T) {
	var nilID *uint64

	tests := []struct {
		name     string
		filter   *Filter
		wantSql  string
		wantArgs []interface{}
	}{
		{
			name:     "nil filter",
			wantSql:  "",
			wantArgs: []interface{}{},
		},
		{
			name: "default and",
			filter: &Filter{Conditions: []*Condition{
				{Field: "recipient_id", Op: OpEq, Value: uint64(1)},
				{Field: "read_at", Op: OpIsNull},
			}},
			wantSql:  "recipient_id = ? AND read_at IS NULL",
			wantArgs: []interface{}{uint64(1)},
		},
		{
			name: "nil values are skipped",
			filter: &Filter{Conditions: []*Condition{
				{Field: "user_id", Op: OpEq, Value: nilID, NextLogicalOp: LogicalOpOr},
				{Field: "ts", Op: OpGte, Value: uint64(10)},
				{Field: "user_id", Op: OpNotNull},
			}},
			wantSql:  "ts >= ? AND user_id IS NOT NULL",
			wantArgs: []interface{}{uint64(10)},
		},
		{
			name: "or",
			filter: &Filter{Conditions: []*Condition{
				{Field: "type", Op: OpEq, Value: "view", NextLogicalOp: LogicalOpOr},
				{Field: "id", Op: OpIn, Value: []string{"a", "b"}},
			}},
			wantSql:  "type = ? OR id IN ?",
			wantArgs: []interface{}{"view", []string{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := ToSqlWithArgs(tt.filter)
			assert.Equal(t, tt.wantSql, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
