package address

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// Repository reads buyer addresses and profiles.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// DefaultAddress returns the owner's default address, or the newest one when
// none is flagged. It returns nil when the owner has no address on file.
func (r *Repository) DefaultAddress(ctx context.Context, ownerID uuid.UUID) (*models.Address, error) {
	var record models.Address
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("is_default DESC").
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ByID loads an address the owner holds.
func (r *Repository) ByID(ctx context.Context, ownerID, addressID uuid.UUID) (*models.Address, error) {
	var record models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", addressID, ownerID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Profile returns the owner's profile, or nil when none exists.
func (r *Repository) Profile(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error) {
	var record models.Profile
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
