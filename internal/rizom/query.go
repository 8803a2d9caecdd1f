package rizom

// Operator is a comparison inside an OperationQuery condition.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpLike      Operator = "like"
	OpIn        Operator = "in"
	OpIsNull    Operator = "is_null"
)

// Condition compares the value at a field path against a literal.
type Condition struct {
	Path  string
	Op    Operator
	Value any
}

// OperationQuery is the opaque predicate passed through to the store. This
// engine never interprets it beyond handing it to the adapter, which resolves
// paths to storage columns.
type OperationQuery struct {
	And []Condition
}

// IsZero reports whether the query filters nothing.
func (q OperationQuery) IsZero() bool { return len(q.And) == 0 }

// Where is shorthand for a single-condition query.
func Where(path string, op Operator, value any) OperationQuery {
	return OperationQuery{And: []Condition{{Path: path, Op: op, Value: value}}}
}
