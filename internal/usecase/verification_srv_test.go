package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"account-service/internal/data/entity"
	"account-service/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationService_EmailVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678", withEmail("rahim@example.com", false))

	require.NoError(t, env.service.Verification.RequestEmailVerification(ctx, user.ID))
	require.NoError(t, env.service.Verification.RequestEmailVerification(ctx, user.ID))

	codes := env.store.verificationsFor(user.ID)
	require.Len(t, codes, 1)
	assert.Equal(t, entity.ChannelEmail, codes[0].Channel)

	sent := env.notifier.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, subjectEmailVerification, sent[0].Subject)
	assert.Equal(t, []string{"rahim@example.com"}, sent[0].Recipients)
	assert.Contains(t, sent[0].Body, codes[0].Code)

	_, err := env.service.Verification.VerifyEmail(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	resp, err := env.service.Verification.VerifyEmail(ctx, user.ID, codes[0].Code)
	require.NoError(t, err)
	assert.True(t, resp.IsEmailVerified)
	assert.True(t, env.store.user(user.ID).IsEmailVerified)
	assert.Equal(t, entity.StateConsumed, env.store.verification(codes[0].ID).State())

	assert.ErrorIs(t, env.service.Verification.RequestEmailVerification(ctx, user.ID), ErrAlreadyVerified)
}

func TestVerificationService_EmailCodeIsNotALoginCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678", withEmail("rahim@example.com", false))

	require.NoError(t, env.service.Verification.RequestEmailVerification(ctx, user.ID))
	code := env.store.verificationsFor(user.ID)[0]

	_, err := env.service.Auth.VerifyAuthentication(ctx, &request.VerifyAuthenticationRequest{
		Username: "+8801712345678",
		Code:     code.Code,
	})
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, entity.StatePending, env.store.verification(code.ID).State())
}

func TestVerificationService_RequestEmailVerificationRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	noEmail := env.addUser("+8801712345678")
	off := env.addUser("+8801900000000", withEmail("off@example.com", false), inactive)

	assert.ErrorIs(t, env.service.Verification.RequestEmailVerification(ctx, noEmail.ID), ErrEmailMissing)
	assert.ErrorIs(t, env.service.Verification.RequestEmailVerification(ctx, off.ID), ErrAccountInactive)
	assert.ErrorIs(t, env.service.Verification.RequestEmailVerification(ctx, uuid.New()), ErrNoAccount)
	assert.ErrorIs(t, env.service.Verification.RequestEmailVerification(ctx, uuid.Nil), ErrUnauthenticated)
	assert.Empty(t, env.notifier.messages())
}

func TestVerificationService_RequestEmailVerificationSchedulingFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678", withEmail("rahim@example.com", false))
	env.expiry.err = errors.New("redis down")

	require.Error(t, env.service.Verification.RequestEmailVerification(ctx, user.ID))
	assert.Empty(t, env.notifier.messages())

	codes := env.store.verificationsFor(user.ID)
	require.Len(t, codes, 1)
	assert.Equal(t, entity.StateExpired, codes[0].State())

	_, err := env.service.Verification.VerifyEmail(ctx, user.ID, codes[0].Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func documentRequest(nid string) *request.SubmitDocumentRequest {
	body := "fake image bytes"
	return &request.SubmitDocumentRequest{
		NIDNumber:   nid,
		Filename:    "front.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestVerificationService_SubmitIdentityDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678")

	resp, err := env.service.Verification.SubmitIdentityDocument(ctx, user.ID, documentRequest("1990123456789"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, resp.VerificationStatus)

	stored := env.store.user(user.ID)
	require.NotNil(t, stored.NIDDocumentKey)
	assert.Equal(t, entity.StatusPending, stored.VerificationStatus)
	assert.Equal(t, []string{*stored.NIDDocumentKey}, env.documents.keys)
	assert.True(t, strings.HasPrefix(*stored.NIDDocumentKey, "identity-documents/"+user.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(*stored.NIDDocumentKey, ".png"))

	_, err = env.service.Verification.SubmitIdentityDocument(ctx, user.ID, documentRequest("1990123456789"))
	var transitionErr *StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, entity.StatusPending, transitionErr.Current)
}

func TestVerificationService_SubmitIdentityDocumentRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678")
	verified := env.addUser("+8801800000000", withStatus(entity.StatusVerified))

	_, err := env.service.Verification.SubmitIdentityDocument(ctx, user.ID, &request.SubmitDocumentRequest{})
	assert.ErrorIs(t, err, ErrDocumentMissing)

	_, err = env.service.Verification.SubmitIdentityDocument(ctx, user.ID, documentRequest("12ab"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "nid_number")

	_, err = env.service.Verification.SubmitIdentityDocument(ctx, verified.ID, documentRequest("1990123456789"))
	var transitionErr *StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, entity.StatusVerified, transitionErr.Current)

	env.documents.err = errors.New("bucket unavailable")
	_, err = env.service.Verification.SubmitIdentityDocument(ctx, user.ID, documentRequest("1990123456789"))
	require.Error(t, err)
	assert.Equal(t, entity.StatusUnverified, env.store.user(user.ID).VerificationStatus)
}

func TestVerificationService_VerifyIdentityDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.addUser("+8801000000001", staff)
	target := env.addUser("+8801712345678", withEmail("rahim@example.com", true), withStatus(entity.StatusPending))

	resp, err := env.service.Verification.VerifyIdentityDocument(ctx, reviewer.ID, &request.VerifyAccountRequest{
		UserID:             target.ID.String(),
		VerificationStatus: string(entity.StatusVerified),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusVerified, resp.VerificationStatus)
	assert.Equal(t, entity.StatusVerified, env.store.user(target.ID).VerificationStatus)

	sent := env.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, subjectVerificationStatus, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "VERIFIED")

	// decided reviews cannot be decided again
	_, err = env.service.Verification.VerifyIdentityDocument(ctx, reviewer.ID, &request.VerifyAccountRequest{
		UserID:             target.ID.String(),
		VerificationStatus: string(entity.StatusNotVerified),
	})
	var transitionErr *StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, entity.StatusVerified, transitionErr.Current)
}

func TestVerificationService_VerifyIdentityDocumentRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.addUser("+8801000000001", staff)
	member := env.addUser("+8801000000002")
	target := env.addUser("+8801712345678", withStatus(entity.StatusPending))
	off := env.addUser("+8801900000000", withStatus(entity.StatusPending), inactive)

	tests := []struct {
		name  string
		actor uuid.UUID
		req   request.VerifyAccountRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "non-staff actor",
			actor: member.ID,
			req:   request.VerifyAccountRequest{UserID: target.ID.String(), VerificationStatus: "VERIFIED"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrForbidden) },
		},
		{
			name:  "unknown target",
			actor: reviewer.ID,
			req:   request.VerifyAccountRequest{UserID: uuid.NewString(), VerificationStatus: "VERIFIED"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoAccount) },
		},
		{
			name:  "malformed target",
			actor: reviewer.ID,
			req:   request.VerifyAccountRequest{UserID: "42", VerificationStatus: "VERIFIED"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoAccount) },
		},
		{
			name:  "inactive target",
			actor: reviewer.ID,
			req:   request.VerifyAccountRequest{UserID: off.ID.String(), VerificationStatus: "VERIFIED"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrAccountInactive) },
		},
		{
			name:  "status outside review outcomes",
			actor: reviewer.ID,
			req:   request.VerifyAccountRequest{UserID: target.ID.String(), VerificationStatus: "UNVERIFIED"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidStatus) },
		},
		{
			name:  "not awaiting review",
			actor: reviewer.ID,
			req:   request.VerifyAccountRequest{UserID: reviewer.ID.String(), VerificationStatus: "VERIFIED"},
			check: func(t *testing.T, err error) {
				var transitionErr *StateTransitionError
				require.ErrorAs(t, err, &transitionErr)
				assert.Equal(t, entity.StatusUnverified, transitionErr.Current)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.service.Verification.VerifyIdentityDocument(ctx, tt.actor, &req)
			tt.check(t, err)
		})
	}

	assert.Equal(t, entity.StatusPending, env.store.user(target.ID).VerificationStatus)
	assert.Empty(t, env.notifier.messages())
}

func TestVerificationService_ListPendingReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reviewer := env.addUser("+8801000000001", staff)
	member := env.addUser("+8801000000002")
	for _, phone := range []string{"+8801700000001", "+8801700000002", "+8801700000003"} {
		env.addUser(phone, withStatus(entity.StatusPending))
	}
	env.addUser("+8801700000004", withStatus(entity.StatusPending), inactive)

	page, err := env.service.Verification.ListPendingReviews(ctx, reviewer.ID, request.PageRequest{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	page, err = env.service.Verification.ListPendingReviews(ctx, reviewer.ID, request.PageRequest{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)

	_, err = env.service.Verification.ListPendingReviews(ctx, member.ID, request.PageRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUserService_GetProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser("+8801712345678", withEmail("rahim@example.com", true))

	resp, err := env.service.User.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), resp.ID)
	assert.False(t, resp.HasPassword)

	_, err = env.service.User.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoAccount)
	_, err = env.service.User.GetProfile(ctx, uuid.Nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
