package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/arvicollection/authcore/pkg/cryptox"
)

type usersRepo struct {
	docs  docstore.Store
	codec *cryptox.Codec

	// createMu serialises the email uniqueness check with the insert.
	createMu sync.Mutex
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	doc, err := r.docs.FindByID(ctx, UsersCollection, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return r.decode(doc)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	doc, err := r.docs.FindOne(ctx, UsersCollection, docstore.Query{
		"email": docstore.Eq(cryptox.NormalizeEmail(email)),
	})
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return r.decode(doc)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = cryptox.NormalizeEmail(u.Email)

	r.createMu.Lock()
	defer r.createMu.Unlock()

	_, err := r.GetUserByEmail(ctx, u.Email)
	switch {
	case err == nil:
		return domain.User{}, store.ErrAlreadyExists
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, err
	}

	fields, err := r.encode(u)
	if err != nil {
		return domain.User{}, err
	}
	doc, err := r.docs.Insert(ctx, UsersCollection, fields)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.decode(doc)
}

func (r *usersRepo) UpdateUser(ctx context.Context, id string, fn func(*domain.User) error) (domain.User, error) {
	doc, err := update(ctx, r.docs, UsersCollection, id, r.decode, r.encode, fn)
	if err != nil {
		return domain.User{}, err
	}
	return r.decode(doc)
}

// encode converts a user into stored fields, sealing the phone number and
// every MFA secret and contact.
func (r *usersRepo) encode(u domain.User) (docstore.Fields, error) {
	var err error
	if u.Phone, err = r.seal(u.Phone); err != nil {
		return nil, err
	}

	if len(u.MFASettings) > 0 {
		settings := make(map[domain.Method]domain.MethodConfig, len(u.MFASettings))
		for m, cfg := range u.MFASettings {
			if cfg.Secret, err = r.seal(cfg.Secret); err != nil {
				return nil, err
			}
			if cfg.PhoneNumber, err = r.seal(cfg.PhoneNumber); err != nil {
				return nil, err
			}
			settings[m] = cfg
		}
		u.MFASettings = settings
	}
	return docstore.FieldsOf(u)
}

// decode reverses encode. Values stored before encryption was introduced
// are read as plaintext.
func (r *usersRepo) decode(doc docstore.Document) (domain.User, error) {
	u, err := decodeAs[domain.User](doc)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = doc.ID
	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt

	if u.Phone, err = r.codec.Reveal(u.Phone); err != nil {
		return domain.User{}, fmt.Errorf("decrypt phone for user %s: %w", doc.ID, err)
	}
	for m, cfg := range u.MFASettings {
		if cfg.Secret, err = r.codec.Reveal(cfg.Secret); err != nil {
			return domain.User{}, fmt.Errorf("decrypt %s secret for user %s: %w", m, doc.ID, err)
		}
		if cfg.PhoneNumber, err = r.codec.Reveal(cfg.PhoneNumber); err != nil {
			return domain.User{}, fmt.Errorf("decrypt %s contact for user %s: %w", m, doc.ID, err)
		}
		u.MFASettings[m] = cfg
	}
	return u, nil
}

func (r *usersRepo) seal(value string) (string, error) {
	if value == "" || cryptox.IsCiphertext(value) {
		return value, nil
	}
	sealed, err := r.codec.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	return sealed, nil
}
