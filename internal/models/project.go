package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Crop types recognized for blue-carbon plots. Unrecognized input falls
// back to CropOther at the store boundary.
const (
	CropMangrove  = "mangrove"
	CropSeagrass  = "seagrass"
	CropSaltMarsh = "salt marsh"
	CropOther     = "other"
)

var validCropTypes = []string{CropMangrove, CropSeagrass, CropSaltMarsh, CropOther}

// NormalizeCropType maps caller input onto the crop enum, defaulting to
// "other" for absent or unrecognized values.
func NormalizeCropType(s string) string {
	for _, c := range validCropTypes {
		if s == c {
			return c
		}
	}
	return CropOther
}

// Coordinates is a lat/lng pair inside a Location.
type Coordinates struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// Location is the structured plot address.
type Location struct {
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	Country     string       `json:"country,omitempty"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// EvidenceImage is a geotagged photograph plus derived metadata, embedded
// in its project's images sequence. It has no lifecycle of its own.
type EvidenceImage struct {
	ID           uuid.UUID  `json:"_id"`
	Filename     string     `json:"filename"`
	URL          string     `json:"url"`
	ThumbnailURL *string    `json:"thumbnailUrl"`
	MimeType     string     `json:"mimeType"`
	SizeBytes    int64      `json:"sizeBytes"`
	Width        *int       `json:"width"`
	Height       *int       `json:"height"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	CapturedAt   *time.Time `json:"capturedAt"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	Description  *string    `json:"description"`
}

// Verification records the admin approval stamp. Set only through the
// status transition, never by field updates.
type Verification struct {
	Verified   bool       `json:"verified"`
	VerifiedBy *uuid.UUID `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Project is the aggregate root: a registered land plot moving through
// the verification workflow. Location, images, verification and metadata
// are stored as JSON columns so the aggregate reads and writes as one row.
type Project struct {
	ID               uuid.UUID                           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title            string                              `gorm:"column:title;not null" json:"title"`
	Description      string                              `gorm:"column:description" json:"description"`
	Notes            string                              `gorm:"column:notes" json:"notes"`
	Owner            uuid.UUID                           `gorm:"column:owner;type:uuid;not null;index" json:"owner"`
	Location         datatypes.JSONType[*Location]       `gorm:"column:location" json:"location"`
	AreaHectares     *float64                            `gorm:"column:area_hectares" json:"areaHectares"`
	CropType         string                              `gorm:"column:crop_type;not null;default:other" json:"cropType"`
	StartDate        *time.Time                          `gorm:"column:start_date" json:"startDate"`
	EndDate          *time.Time                          `gorm:"column:end_date" json:"endDate"`
	EstimatedCredits float64                             `gorm:"column:estimated_credits;not null;default:0" json:"estimatedCredits"`
	IssuedCredits    float64                             `gorm:"column:issued_credits;not null;default:0" json:"issuedCredits"`
	Status           string                              `gorm:"column:status;not null;default:draft;index" json:"status"`
	Images           datatypes.JSONSlice[EvidenceImage]  `gorm:"column:images" json:"images"`
	VerificationInfo datatypes.JSONType[Verification]    `gorm:"column:verification" json:"verification"`
	Metadata         datatypes.JSONMap                   `gorm:"column:metadata" json:"metadata"`
	CreatedAt        time.Time                           `json:"createdAt"`
	UpdatedAt        time.Time                           `json:"updatedAt"`
}

// BeforeCreate assigns the ID (for DBs without gen_random_uuid).
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
