package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// DateLayout is the format of date_range filter values.
const DateLayout = "2006-01-02"

var ErrInvalidFilter = errors.New("invalid filter")

var filterOperators = []CommonFilterOperator{
	CommonFilterOperatorEq, CommonFilterOperatorNotEq,
	CommonFilterOperatorLt, CommonFilterOperatorLte,
	CommonFilterOperatorGt, CommonFilterOperatorGte,
	CommonFilterOperatorDateRange, CommonFilterOperatorRange,
	CommonFilterOperatorIn,
}

// CommonFilter is one admin query condition on a column.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// ValidateFilters checks every filter against the columns the caller allows
// and the arity its operator needs.
func ValidateFilters(filters []*CommonFilter, columns []string) error {
	for _, f := range filters {
		if f == nil {
			return fmt.Errorf("%w: empty filter", ErrInvalidFilter)
		}
		if !lo.Contains(columns, f.Field) {
			return fmt.Errorf("%w: field %q is not filterable", ErrInvalidFilter, f.Field)
		}
		if !lo.Contains(filterOperators, f.Operator) {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
		}
		switch f.Operator {
		case CommonFilterOperatorRange:
			if len(f.Values) != 2 {
				return fmt.Errorf("%w: %s needs two values", ErrInvalidFilter, f.Operator)
			}
		case CommonFilterOperatorDateRange:
			if _, _, err := f.dateRange(); err != nil {
				return err
			}
		default:
			if len(f.Values) == 0 {
				return fmt.Errorf("%w: %s on %s has no value", ErrInvalidFilter, f.Operator, f.Field)
			}
		}
	}
	return nil
}

// dateRange parses [from, to] as whole days; to is inclusive.
func (f *CommonFilter) dateRange() (time.Time, time.Time, error) {
	if len(f.Values) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range needs two dates", ErrInvalidFilter)
	}
	var bounds [2]time.Time
	for i, v := range f.Values {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range value %v is not a date", ErrInvalidFilter, v)
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		bounds[i] = t
	}
	return bounds[0], bounds[1].AddDate(0, 0, 1), nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		from, to, err := f.dateRange()
		if err != nil {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: from}, clause.Lt{Column: f.Field, Value: to}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	default:
		return
	}
}
