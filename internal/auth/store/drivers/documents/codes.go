package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/docstore"
)

type codesRepo struct {
	docs docstore.Store
}

func decodeCode(doc docstore.Document) (domain.VerificationCode, error) {
	c, err := decodeAs[domain.VerificationCode](doc)
	c.ID = doc.ID
	c.CreatedAt = doc.CreatedAt
	return c, err
}

func encodeCode(c domain.VerificationCode) (docstore.Fields, error) {
	return docstore.FieldsOf(c)
}

func (r *codesRepo) CreateCode(ctx context.Context, c domain.VerificationCode) (domain.VerificationCode, error) {
	fields, err := encodeCode(c)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	doc, err := r.docs.Insert(ctx, VerificationCodesCollection, fields)
	if err != nil {
		return domain.VerificationCode{}, fmt.Errorf("insert verification code: %w", err)
	}
	return decodeCode(doc)
}

func (r *codesRepo) ListOpenCodes(ctx context.Context, userID string, purpose domain.Purpose) ([]domain.VerificationCode, error) {
	docs, err := r.docs.Find(ctx, VerificationCodesCollection, docstore.Query{
		"userId":  docstore.Eq(userID),
		"purpose": docstore.Eq(purpose),
		"used":    docstore.Eq(false),
		"locked":  docstore.Eq(false),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.VerificationCode, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *codesRepo) UpdateCode(ctx context.Context, id string, fn func(*domain.VerificationCode) error) (domain.VerificationCode, error) {
	doc, err := update(ctx, r.docs, VerificationCodesCollection, id, decodeCode, encodeCode, fn)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	return decodeCode(doc)
}

func (r *codesRepo) DeleteCodesExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteExpired(ctx, r.docs, VerificationCodesCollection, cutoff)
}
