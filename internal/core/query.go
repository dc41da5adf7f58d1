package core

import (
	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

var operators = map[models.Comparator]string{
	models.Equal:              "==",
	models.LessThan:           "<",
	models.LessThanOrEqual:    "<=",
	models.GreaterThan:        ">",
	models.GreaterThanOrEqual: ">=",
}

// Translate turns a query descriptor into a backend filter. It returns nil,
// meaning the unfiltered collection, when the field or comparator is missing.
func Translate(q models.Query) *db.Filter {
	if !q.Filtered() {
		return nil
	}
	op, ok := operators[q.Comparator]
	if !ok {
		return nil
	}
	return &db.Filter{Field: q.Field, Op: op, Value: q.Value}
}
