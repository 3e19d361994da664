// Package store persists inventory items.
package store

import (
	"context"
	"errors"

	"github.com/tatianab/grammrpg/internal/models"
)

// ErrItemNotFound is returned when deleting an unknown item.
var ErrItemNotFound = errors.New("item not found")

// ItemStore owns inventory item identity. List returns items in creation
// order.
type ItemStore interface {
	Insert(ctx context.Context, name string) (models.Item, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Item, error)
}
