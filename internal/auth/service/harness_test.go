package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/internal/auth/store/drivers/documents"
	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/arvicollection/authcore/internal/docstore/drivers/file"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testPepper   = "service-test-pepper"
	testPassword = "C0rrect!Horse9"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentCode struct {
	to   string
	code notify.Code
}

// recordingSender captures codes instead of delivering them. A delay
// stands in for a slow transport.
type recordingSender struct {
	mu    sync.Mutex
	sent  []sentCode
	err   error
	delay time.Duration
}

func (r *recordingSender) record(ctx context.Context, to string, code notify.Code) (notify.Delivery, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if err := ctx.Err(); err != nil {
		return notify.Delivery{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return notify.Delivery{}, r.err
	}
	r.sent = append(r.sent, sentCode{to: to, code: code})
	return notify.Delivery{MessageID: "test"}, nil
}

func (r *recordingSender) SendEmailCode(ctx context.Context, to string, code notify.Code) (notify.Delivery, error) {
	return r.record(ctx, to, code)
}

func (r *recordingSender) SendSMSCode(ctx context.Context, phone string, code notify.Code) (notify.Delivery, error) {
	return r.record(ctx, phone, code)
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingSender) last(t *testing.T) sentCode {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "nothing was sent")
	return r.sent[len(r.sent)-1]
}

type harness struct {
	ctx      context.Context
	clock    *testClock
	store    *documents.Store
	hasher   *cryptox.Hasher
	email    *recordingSender
	sms      *recordingSender
	mfa      *MFAService
	login    *LoginService
	sessions *SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	docs, err := file.Open(t.TempDir(), docstore.Options{Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	codec, err := cryptox.NewCodec([]byte("service-test-master-key"))
	require.NoError(t, err)
	st := documents.New(docs, codec)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner(pemKey)
	require.NoError(t, err)

	h := &harness{
		ctx:    context.Background(),
		clock:  clock,
		store:  st,
		hasher: cryptox.NewHasher(testPepper),
		email:  &recordingSender{},
		sms:    &recordingSender{},
	}
	h.mfa = &MFAService{
		Store:  st,
		Hasher: h.hasher,
		Email:  h.email,
		SMS:    h.sms,
		Issuer: "Arvi's Collection",
		Now:    clock.Now,
	}
	h.sessions = &SessionService{
		Store:    st,
		Signer:   signer,
		Verifier: jwtx.NewVerifier("storefront", 0, clock.Now, signer.PublicKey()),
		Issuer:   "storefront",
		Now:      clock.Now,
	}
	h.login = &LoginService{
		Store:    st,
		Hasher:   h.hasher,
		MFA:      h.mfa,
		Sessions: h.sessions,
		Now:      clock.Now,
	}
	return h
}

func (h *harness) createUser(t *testing.T, email string) domain.User {
	t.Helper()
	hash, err := h.hasher.Hash(testPassword)
	require.NoError(t, err)
	u, err := h.store.Users().CreateUser(h.ctx, domain.User{Email: email, PasswordHash: hash})
	require.NoError(t, err)
	return u
}

func (h *harness) user(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := h.store.Users().GetUserByID(h.ctx, id)
	require.NoError(t, err)
	return u
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// enableTOTP enrols and verifies TOTP, returning the secret and backup codes.
func (h *harness) enableTOTP(t *testing.T, userID string) (string, []string) {
	t.Helper()
	res, err := h.mfa.SetupMFA(h.ctx, userID, domain.MethodTOTP, SetupData{})
	require.NoError(t, err)
	require.NoError(t, h.mfa.VerifyMFASetup(h.ctx, userID, domain.MethodTOTP, totpCode(t, res.Secret, h.clock.Now())))
	return res.Secret, res.BackupCodes
}

// enableEmail enrols and verifies email codes.
func (h *harness) enableEmail(t *testing.T, userID string) {
	t.Helper()
	_, err := h.mfa.SetupMFA(h.ctx, userID, domain.MethodEmail, SetupData{})
	require.NoError(t, err)
	require.NoError(t, h.mfa.VerifyMFASetup(h.ctx, userID, domain.MethodEmail, h.email.last(t).code.Value))
}

// enableSMS enrols and verifies SMS codes for phone.
func (h *harness) enableSMS(t *testing.T, userID, phone string) {
	t.Helper()
	_, err := h.mfa.SetupMFA(h.ctx, userID, domain.MethodSMS, SetupData{PhoneNumber: phone})
	require.NoError(t, err)
	require.NoError(t, h.mfa.VerifyMFASetup(h.ctx, userID, domain.MethodSMS, h.sms.last(t).code.Value))
}
