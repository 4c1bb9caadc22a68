package store

import (
	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/models"
)

// Scope builds the visibility predicate for a model: rows owned by nobody or
// by the caller, and soft-delete visibility per deleted. It returns nil when
// the model has neither column. The result is always ANDed with caller
// filters.
func Scope(meta Meta, caller identity.Caller, deleted models.IncludeDeleted) Expr {
	var clauses []Expr

	if meta.Owner {
		if caller.IsAnonymous() {
			clauses = append(clauses, IsNull(ColOwnerID))
		} else {
			clauses = append(clauses, Or{IsNull(ColOwnerID), Eq(ColOwnerID, caller.ID)})
		}
	}

	if meta.SoftDelete {
		switch deleted {
		case models.OnlyDeleted:
			clauses = append(clauses, NotNull(ColDeletedAt))
		case models.ExcludeDeleted:
			clauses = append(clauses, IsNull(ColDeletedAt))
		}
	}

	if len(clauses) == 0 {
		return nil
	}

	return And(clauses)
}
