package api

import "github.com/coesco/opsapi/internal/domain"

// Service aliases. Canonical definitions live in internal/domain.
type (
	EntityService         = domain.EntityService
	QuoteService          = domain.QuoteService
	AuditService          = domain.AuditService
	DeletedRecordsService = domain.DeletedRecordsService
)
