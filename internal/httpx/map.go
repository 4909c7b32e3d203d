package httpx

import (
	"errors"

	"github.com/ikus060/udb/internal/engine"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/rule"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// FromError maps a domain error to its API representation. Validation and
// constraint errors carry the offending field in the data payload so the
// frontend can highlight the right input; rule violations carry the full
// violation list.
func FromError(err error) *AppError {
	var validation *model.ValidationError
	if errors.As(err, &validation) {
		return ErrParamInvalid(validation.Message).WithData(gin.H{"field": validation.Field})
	}
	var constraint *engine.ConstraintViolation
	if errors.As(err, &constraint) {
		return ErrStateConflict(constraint.Message).
			WithData(gin.H{"field": constraint.Field, "constraint": constraint.Constraint})
	}
	var ruleErr *rule.Error
	if errors.As(err, &ruleErr) {
		return ErrStateConflict(ruleErr.Error()).WithData(gin.H{"violations": ruleErr.Violations})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound("")
	}
	return ErrDatabaseError("", err)
}

// FailFrom maps the error and writes the response.
func FailFrom(c *gin.Context, err error) {
	FailErr(c, FromError(err))
}
