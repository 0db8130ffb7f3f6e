package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CopyStatus is the lifecycle state of one physical copy.
type CopyStatus string

const (
	CopyStatusAvailable   CopyStatus = "available"
	CopyStatusBorrowed    CopyStatus = "borrowed"
	CopyStatusReserved    CopyStatus = "reserved"
	CopyStatusLost        CopyStatus = "lost"
	CopyStatusDamaged     CopyStatus = "damaged"
	CopyStatusMaintenance CopyStatus = "maintenance"
)

// AdminCopyStatuses are the statuses an operator may set directly.
// Borrowed is owned by the loan lifecycle and never set by hand.
var AdminCopyStatuses = map[CopyStatus]bool{
	CopyStatusAvailable:   true,
	CopyStatusReserved:    true,
	CopyStatusLost:        true,
	CopyStatusDamaged:     true,
	CopyStatusMaintenance: true,
}

// AddTitleRequest creates or tops up a title: if the ISBN already exists the
// descriptive fields are refreshed and `quantity` new copies are added.
type AddTitleRequest struct {
	ISBN        string   `json:"isbn"`
	Title       string   `json:"title" binding:"omitempty,max=255"`
	Author      string   `json:"author" binding:"omitempty,max=255"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Price       string   `json:"price"`
	Quantity    int      `json:"quantity" binding:"omitempty,min=1,max=100"`
	Categories  []string `json:"categories" binding:"omitempty,max=3"`
}

// ListTitlesRequest carries the catalog list filters.
type ListTitlesRequest struct {
	Search       string `form:"search"`
	Availability string `form:"availability"` // "", "true", "false"
	CategoryID   string `form:"category_id"`
	Deleted      string `form:"deleted"` // "active" (default), "deleted", "all"
	Page         int    `form:"page,default=1" binding:"min=1"`
	Limit        int    `form:"limit,default=20" binding:"min=1,max=100"`
}

type TitleResponse struct {
	ID             string             `json:"id"`
	ISBN           *string            `json:"isbn"`
	Title          string             `json:"title"`
	Author         string             `json:"author"`
	Description    string             `json:"description"`
	Price          decimal.Decimal    `json:"price"`
	AvailableCount int32              `json:"available_count"`
	TotalCopies    int32              `json:"total_copies"`
	IsAvailable    bool               `json:"is_available"`
	IsDeleted      bool               `json:"is_deleted"`
	DeletedAt      *time.Time         `json:"deleted_at,omitempty"`
	Categories     []CategoryResponse `json:"categories,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type TitleListResponse struct {
	Titles     []TitleResponse `json:"titles"`
	Pagination Pagination      `json:"pagination"`
}

// TitleLookupResponse answers an ISBN existence check. A miss is a normal
// answer here, not an error.
type TitleLookupResponse struct {
	Exists bool           `json:"exists"`
	Title  *TitleResponse `json:"title"`
}

// AddTitleResponse reports what the add operation did.
type AddTitleResponse struct {
	Title         TitleResponse  `json:"title"`
	CreatedCopies []CopyResponse `json:"created_copies"`
	Existed       bool           `json:"existed"`
}

type CopyResponse struct {
	ID            string     `json:"id"`
	TitleID       string     `json:"title_id"`
	CopyNumber    int32      `json:"copy_number"`
	CopyCode      string     `json:"copy_code"`
	Status        CopyStatus `json:"status"`
	CurrentLoanID *string    `json:"current_loan_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	AcquiredAt    time.Time  `json:"acquired_at"`
}

// SetCopyStatusRequest applies an administrative copy status.
type SetCopyStatusRequest struct {
	Status CopyStatus `json:"status" binding:"required"`
	Notes  *string    `json:"notes"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
