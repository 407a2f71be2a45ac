package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/docstore"
)

type resetsRepo struct {
	docs docstore.Store
}

func decodeReset(doc docstore.Document) (domain.PasswordResetRequest, error) {
	r, err := decodeAs[domain.PasswordResetRequest](doc)
	r.ID = doc.ID
	r.CreatedAt = doc.CreatedAt
	return r, err
}

func encodeReset(r domain.PasswordResetRequest) (docstore.Fields, error) {
	return docstore.FieldsOf(r)
}

func (r *resetsRepo) CreateReset(ctx context.Context, req domain.PasswordResetRequest) (domain.PasswordResetRequest, error) {
	fields, err := encodeReset(req)
	if err != nil {
		return domain.PasswordResetRequest{}, err
	}
	doc, err := r.docs.Insert(ctx, PasswordResetsCollection, fields)
	if err != nil {
		return domain.PasswordResetRequest{}, fmt.Errorf("insert password reset: %w", err)
	}
	return decodeReset(doc)
}

func (r *resetsRepo) GetOpenReset(ctx context.Context, token string) (domain.PasswordResetRequest, error) {
	doc, err := r.docs.FindOne(ctx, PasswordResetsCollection, docstore.Query{
		"resetToken": docstore.Eq(token),
		"used":       docstore.Eq(false),
	})
	if err != nil {
		return domain.PasswordResetRequest{}, mapNotFound(err)
	}
	return decodeReset(doc)
}

func (r *resetsRepo) UpdateReset(ctx context.Context, token string, fn func(*domain.PasswordResetRequest) error) (domain.PasswordResetRequest, error) {
	found, err := r.docs.FindOne(ctx, PasswordResetsCollection, docstore.Query{
		"resetToken": docstore.Eq(token),
	})
	if err != nil {
		return domain.PasswordResetRequest{}, mapNotFound(err)
	}
	doc, err := update(ctx, r.docs, PasswordResetsCollection, found.ID, decodeReset, encodeReset, fn)
	if err != nil {
		return domain.PasswordResetRequest{}, err
	}
	return decodeReset(doc)
}

func (r *resetsRepo) DeleteResetsExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteExpired(ctx, r.docs, PasswordResetsCollection, cutoff)
}
