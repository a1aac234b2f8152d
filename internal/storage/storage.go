// Package storage defines the persistence interface for the structured rules table.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/nexus/internal/models"
)

// ErrRuleNotFound is returned by Get when no rule has the requested id.
var ErrRuleNotFound = errors.New("rule not found")

// RuleStore defines rule persistence and keyword search.
type RuleStore interface {
	// Rule operations
	Upsert(ctx context.Context, rule *models.Rule) error
	Get(ctx context.Context, id string) (*models.Rule, error)
	Delete(ctx context.Context, id string) error

	// Search matches any keyword in any of fields (case-insensitive substring),
	// most recently updated first.
	Search(ctx context.Context, keywords, fields []string, docType models.DocType, limit int) ([]*models.Rule, error)
	// Recent returns the most recently updated rules.
	Recent(ctx context.Context, docType models.DocType, limit int) ([]*models.Rule, error)

	// Stats
	Count(ctx context.Context) (int64, error)

	Close() error
}
