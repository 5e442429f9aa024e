package repo

import (
	"engage/entity"
	"engage/pkg/goutil"
	"fmt"
	"strings"
)

type LogicalOp string

const (
	LogicalOpAnd LogicalOp = "AND"
	LogicalOpOr  LogicalOp = "OR"
)

type Op string

const (
	OpEq      Op = "="
	OpNotEq   Op = "!="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpLike    Op = "LIKE"
	OpIn      Op = "IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

// Condition is one predicate. NextLogicalOp joins it to the following condition
// and defaults to AND.
type Condition struct {
	Field         string
	Op            Op
	Value         interface{}
	NextLogicalOp LogicalOp
}

type Filter struct {
	Conditions []*Condition
	Pagination *entity.Pagination
	Order      string
	Limit      int
}

func (f *Filter) GetConditions() []*Condition {
	if f != nil {
		return f.Conditions
	}
	return nil
}

func (f *Filter) GetOrder() string {
	if f != nil {
		return f.Order
	}
	return ""
}

func (f *Filter) GetLimit() int {
	if f != nil {
		return f.Limit
	}
	return 0
}

// ToSqlWithArgs renders the filter's conditions as a gorm where clause.
// Conditions with a nil value are skipped, except the null checks which take none.
func ToSqlWithArgs(f *Filter) (string, []interface{}) {
	var (
		sb     strings.Builder
		args   = make([]interface{}, 0)
		nextOp LogicalOp
	)

	for _, condition := range f.GetConditions() {
		var expr string
		switch condition.Op {
		case OpIsNull, OpNotNull:
			expr = fmt.Sprintf("%s %s", condition.Field, condition.Op)
		case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte, OpLike, OpIn:
			if goutil.IsNil(condition.Value) {
				continue
			}
			expr = fmt.Sprintf("%s %s ?", condition.Field, condition.Op)
			args = append(args, condition.Value)
		default:
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString(fmt.Sprintf(" %s ", nextOp))
		}
		sb.WriteString(expr)

		nextOp = condition.NextLogicalOp
		if nextOp == "" {
			nextOp = LogicalOpAnd
		}
	}

	return sb.String(), args
}
