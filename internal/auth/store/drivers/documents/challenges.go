package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/docstore"
)

type challengesRepo struct {
	docs docstore.Store
}

func decodeChallenge(doc docstore.Document) (domain.MFAChallenge, error) {
	c, err := decodeAs[domain.MFAChallenge](doc)
	c.ID = doc.ID
	c.CreatedAt = doc.CreatedAt
	return c, err
}

func encodeChallenge(c domain.MFAChallenge) (docstore.Fields, error) {
	return docstore.FieldsOf(c)
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.MFAChallenge) (domain.MFAChallenge, error) {
	fields, err := encodeChallenge(c)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	doc, err := r.docs.Insert(ctx, ChallengesCollection, fields)
	if err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("insert challenge: %w", err)
	}
	return decodeChallenge(doc)
}

func (r *challengesRepo) find(ctx context.Context, challengeID string) (docstore.Document, error) {
	doc, err := r.docs.FindOne(ctx, ChallengesCollection, docstore.Query{
		"challengeId": docstore.Eq(challengeID),
	})
	return doc, mapNotFound(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, challengeID string) (domain.MFAChallenge, error) {
	doc, err := r.find(ctx, challengeID)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	return decodeChallenge(doc)
}

func (r *challengesRepo) UpdateChallenge(ctx context.Context, challengeID string, fn func(*domain.MFAChallenge) error) (domain.MFAChallenge, error) {
	found, err := r.find(ctx, challengeID)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	doc, err := update(ctx, r.docs, ChallengesCollection, found.ID, decodeChallenge, encodeChallenge, fn)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	return decodeChallenge(doc)
}

func (r *challengesRepo) DeleteChallengesExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteExpired(ctx, r.docs, ChallengesCollection, cutoff)
}
