package queries

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ngvinh/circulib/internal/models"
)

// PgUUID wraps a uuid for the query layer.
func PgUUID(u uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: u, Valid: true}
}

// UUIDString renders a stored uuid; empty when NULL.
func UUIDString(p pgtype.UUID) string {
	if !p.Valid {
		return ""
	}
	return uuid.UUID(p.Bytes).String()
}

// ToResponse converts a stored Title to the API shape.
func (t *Title) ToResponse() models.TitleResponse {
	resp := models.TitleResponse{
		ID:     UUIDString(t.ID),
		Title:  t.Title,
		Author: t.Author,
		Price:  DecimalFromNumeric(t.Price),
	}

	if t.Isbn.Valid {
		resp.ISBN = &t.Isbn.String
	}
	if t.Description.Valid {
		resp.Description = t.Description.String
	}
	if t.AvailableCount.Valid {
		resp.AvailableCount = t.AvailableCount.Int32
	}
	if t.TotalCopies.Valid {
		resp.TotalCopies = t.TotalCopies.Int32
	}
	if t.IsAvailable.Valid {
		resp.IsAvailable = t.IsAvailable.Bool
	}
	if t.IsDeleted.Valid {
		resp.IsDeleted = t.IsDeleted.Bool
	}
	if t.DeletedAt.Valid {
		resp.DeletedAt = &t.DeletedAt.Time
	}
	if t.CreatedAt.Valid {
		resp.CreatedAt = t.CreatedAt.Time
	}
	if t.UpdatedAt.Valid {
		resp.UpdatedAt = t.UpdatedAt.Time
	}

	return resp
}

func (c *Copy) ToResponse() models.CopyResponse {
	resp := models.CopyResponse{
		ID:         UUIDString(c.ID),
		TitleID:    UUIDString(c.TitleID),
		CopyNumber: c.CopyNumber,
		CopyCode:   c.CopyCode,
		Status:     models.CopyStatus(c.Status),
	}

	if c.CurrentLoanID.Valid {
		loanID := UUIDString(c.CurrentLoanID)
		resp.CurrentLoanID = &loanID
	}
	if c.Notes.Valid {
		resp.Notes = c.Notes.String
	}
	if c.AcquiredAt.Valid {
		resp.AcquiredAt = c.AcquiredAt.Time
	}

	return resp
}

func (l *Loan) ToResponse() models.LoanResponse {
	resp := models.LoanResponse{
		ID:         UUIDString(l.ID),
		CopyID:     UUIDString(l.CopyID),
		TitleID:    UUIDString(l.TitleID),
		UserID:     UUIDString(l.UserID),
		UserName:   l.UserName,
		UserEmail:  l.UserEmail,
		Price:      DecimalFromNumeric(l.Price),
		RenewCount: l.RenewCount,
		Fine:       DecimalFromNumeric(l.Fine),
		Payment: models.PaymentInfo{
			Method: models.PaymentMethod(l.PaymentMethod),
			Status: models.PaymentStatus(l.PaymentStatus),
			Amount: DecimalFromNumeric(l.PaymentAmount),
		},
	}

	if l.BorrowDate.Valid {
		resp.BorrowDate = l.BorrowDate.Time
	}
	if l.DueDate.Valid {
		resp.DueDate = l.DueDate.Time
	}
	if l.ReturnDate.Valid {
		resp.ReturnDate = &l.ReturnDate.Time
	}
	if l.LastRenewedAt.Valid {
		resp.LastRenewedAt = &l.LastRenewedAt.Time
	}
	if l.TransactionRef.Valid {
		resp.Payment.TransactionRef = &l.TransactionRef.String
	}
	if l.PaidAt.Valid {
		resp.Payment.PaidAt = &l.PaidAt.Time
	}

	return resp
}

func (u *User) ToResponse() models.UserResponse {
	resp := models.UserResponse{
		ID:    UUIDString(u.ID),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}

	if u.Verified.Valid {
		resp.Verified = u.Verified.Bool
	}
	if u.Locked.Valid && u.Locked.Bool {
		resp.Locked = true
		resp.LockReason = u.LockReason
	}
	if u.CreatedAt.Valid {
		resp.CreatedAt = u.CreatedAt.Time
	}

	return resp
}

func (c *Category) ToResponse() models.CategoryResponse {
	resp := models.CategoryResponse{
		ID:   UUIDString(c.ID),
		Name: c.Name,
	}
	if c.Description.Valid {
		resp.Description = c.Description.String
	}
	return resp
}
