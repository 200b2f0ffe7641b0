package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/internal/dto/request"
	"account-service/internal/dto/response"
	"account-service/pkg/metrics"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error)
	RequestCode(ctx context.Context, identifier string) error
	VerifyAuthentication(ctx context.Context, req *request.VerifyAuthenticationRequest) (*response.AuthResponse, error)
	VerifyChangePassword(ctx context.Context, req *request.VerifyChangePasswordRequest) (*response.UserResponse, error)
	GenerateMagicLink(ctx context.Context, email string) error
	ConsumeMagicLink(ctx context.Context, loginID string) (*response.AuthResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	repo   *repository.Repository
	deps   Dependencies
	config *utils.Config
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(
	repo *repository.Repository,
	deps Dependencies,
	config *utils.Config,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:   repo,
		deps:   deps,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error) {
	// 1. Validate input
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Fields: errs}
	}

	phone, ok := utils.NormalizePhone(req.PhoneNumber)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"phone_number": "Invalid phone number"}}
	}
	if req.Email != "" && !utils.IsEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	// 2. Phone numbers identify accounts
	existing, err := s.repo.User.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("check phone: %w", err)
	}
	if existing != nil {
		return nil, ErrPhoneTaken
	}

	// 3. Password policy, measured against the account's own details
	user := newUser(s.now())
	user.Phone = &phone
	if req.Email != "" {
		email := req.Email
		user.Email = &email
	}
	user.FirstName = req.FirstName
	user.LastName = req.LastName

	if err := s.deps.Policy.Validate(req.Password, user.PasswordContext()); err != nil {
		return nil, &PasswordPolicyError{Detail: err.Error()}
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed

	// 4. Save
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}

	s.log.Info("User registered", zap.String("user_id", user.ID.String()))

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *authService) RequestCode(ctx context.Context, identifier string) error {
	// 1. Phone or email, nothing else
	kind, normalized := utils.ClassifyIdentifier(identifier)
	if kind == utils.IdentifierUnknown {
		return ErrInvalidIdentifier
	}

	// 2. Unknown identifiers get a passwordless account
	user, err := s.findByIdentifier(ctx, kind, normalized)
	if err != nil {
		return err
	}
	if user == nil {
		user, err = s.createCodeOnlyUser(ctx, kind, normalized)
		if err != nil {
			return err
		}
	}

	if !user.IsActive {
		return s.fail("account_inactive", ErrAccountInactive)
	}

	// 3. Reuse the pending code or issue one
	verification, created, err := s.repo.Verification.CreatePending(ctx, user.ID, entity.ChannelCode)
	if err != nil {
		return fmt.Errorf("create pending verification: %w", err)
	}
	if created {
		s.deps.Metrics.IssuedInc(string(entity.ChannelCode))
	}

	// 4. Schedule on every request; invalidation is idempotent
	if err := scheduleExpiry(ctx, s.repo.Verification, s.deps.Expiry, verification.ID, s.expiry(), s.log); err != nil {
		return err
	}

	// 5. Deliver; failures stay with the dispatcher
	minutes := s.config.OTP.ExpiryMinutes
	switch kind {
	case utils.IdentifierPhone:
		s.deps.Notifier.SendSMS(ctx, []string{normalized}, smsCodeMessage(verification.Code, minutes))
	case utils.IdentifierEmail:
		s.deps.Notifier.SendEmail(ctx, []string{normalized}, subjectAuthentication, emailCodeMessage(verification.Code, minutes), "")
	}

	s.log.Info("Verification code requested",
		zap.String("user_id", user.ID.String()),
		zap.String("verification_id", verification.ID.String()),
		zap.Bool("created", created),
	)

	return nil
}

func (s *authService) VerifyAuthentication(ctx context.Context, req *request.VerifyAuthenticationRequest) (*response.AuthResponse, error) {
	// 1. Resolve the account
	user, err := s.resolveUser(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	// 2. The code must be pending
	verification, err := s.repo.Verification.FindUsable(ctx, req.Code, user.ID, channelPtr(entity.ChannelCode))
	if err != nil {
		return nil, fmt.Errorf("find verification: %w", err)
	}
	if verification == nil {
		return nil, s.fail("invalid_code", ErrInvalidCode)
	}

	// 3. Accounts with a password must present it; code-only accounts must not
	if user.HasUsablePassword() {
		if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
			s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
			return nil, s.fail("invalid_credentials", ErrInvalidCredentials)
		}
	} else if req.Password != "" {
		return nil, s.fail("invalid_credentials", ErrInvalidCredentials)
	}

	// 4. Exactly one caller wins the code
	if err := s.consume(ctx, verification); err != nil {
		return nil, err
	}

	// 5. Session
	session, err := s.repo.Session.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.log.Info("User authenticated",
		zap.String("user_id", user.ID.String()),
		zap.String("method", "code"),
	)

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) VerifyChangePassword(ctx context.Context, req *request.VerifyChangePasswordRequest) (*response.UserResponse, error) {
	user, err := s.resolveUser(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if req.NewPassword == "" {
		return nil, ErrPasswordMissing
	}

	verification, err := s.repo.Verification.FindUsable(ctx, req.Code, user.ID, channelPtr(entity.ChannelCode))
	if err != nil {
		return nil, fmt.Errorf("find verification: %w", err)
	}
	if verification == nil {
		return nil, s.fail("invalid_code", ErrInvalidCode)
	}

	if err := s.deps.Policy.Validate(req.NewPassword, user.PasswordContext()); err != nil {
		return nil, &PasswordPolicyError{Detail: err.Error()}
	}

	hashed, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return nil, err
	}

	// consume first so two requests with one code cannot both set a password
	if err := s.consume(ctx, verification); err != nil {
		return nil, err
	}

	// the code is spent even if this write fails; the caller requests a new one
	if err := s.repo.User.UpdatePassword(ctx, user.ID, hashed); err != nil {
		s.log.Error("Failed to update password after consuming code",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
			zap.String("verification_id", verification.ID.String()),
		)
		return nil, fmt.Errorf("update password (code already used, request a new one): %w", err)
	}
	user.PasswordHash = hashed

	s.log.Info("Password changed", zap.String("user_id", user.ID.String()))

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *authService) GenerateMagicLink(ctx context.Context, email string) error {
	if !utils.IsEmail(email) {
		return ErrInvalidEmail
	}

	user, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return s.fail("no_account", ErrNoAccount)
	}
	if !user.IsActive {
		return s.fail("account_inactive", ErrAccountInactive)
	}
	if !user.IsEmailVerified {
		return ErrEmailNotVerified
	}

	// links are never reused
	verification, err := s.repo.Verification.Create(ctx, user.ID, entity.ChannelLink)
	if err != nil {
		return fmt.Errorf("create login link: %w", err)
	}
	s.deps.Metrics.IssuedInc(string(entity.ChannelLink))

	if err := scheduleExpiry(ctx, s.repo.Verification, s.deps.Expiry, verification.ID, s.expiry(), s.log); err != nil {
		return err
	}

	link, err := magicLink(s.config.App.MagicLinkBaseURL, verification.ID.String())
	if err != nil {
		return err
	}

	s.deps.Notifier.SendEmail(ctx, []string{email}, subjectAuthentication, magicLinkMessage(link), "")

	s.log.Info("Login link sent",
		zap.String("user_id", user.ID.String()),
		zap.String("verification_id", verification.ID.String()),
	)

	return nil
}

func (s *authService) ConsumeMagicLink(ctx context.Context, loginID string) (*response.AuthResponse, error) {
	id, err := uuid.Parse(loginID)
	if err != nil {
		return nil, s.fail("invalid_link", ErrInvalidLink)
	}

	verification, err := s.repo.Verification.FindUsableByID(ctx, id, entity.ChannelLink)
	if err != nil {
		return nil, fmt.Errorf("find login link: %w", err)
	}
	if verification == nil {
		return nil, s.fail("invalid_link", ErrInvalidLink)
	}

	user, err := s.repo.User.FindByID(ctx, verification.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, s.fail("invalid_link", ErrInvalidLink)
	}
	if !user.IsActive {
		return nil, s.fail("account_inactive", ErrAccountInactive)
	}

	ok, err := s.repo.Verification.Consume(ctx, verification.ID)
	if err != nil {
		return nil, fmt.Errorf("consume login link: %w", err)
	}
	if !ok {
		return nil, s.fail("invalid_link", ErrInvalidLink)
	}
	s.deps.Metrics.ConsumedInc(string(entity.ChannelLink))

	session, err := s.repo.Session.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.log.Info("User authenticated",
		zap.String("user_id", user.ID.String()),
		zap.String("method", "magic_link"),
	)

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	deleted, err := s.repo.Session.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return ErrUnauthenticated
	}

	s.log.Info("User logged out", zap.String("user_id", userID.String()))
	return nil
}

// ==================== HELPER METHODS ====================

// resolveUser finds an active account by phone or email.
func (s *authService) resolveUser(ctx context.Context, identifier string) (*entity.User, error) {
	kind, normalized := utils.ClassifyIdentifier(identifier)
	if kind == utils.IdentifierUnknown {
		return nil, ErrInvalidIdentifier
	}

	user, err := s.findByIdentifier(ctx, kind, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, s.fail("no_account", ErrNoAccount)
	}
	if !user.IsActive {
		return nil, s.fail("account_inactive", ErrAccountInactive)
	}
	return user, nil
}

func (s *authService) findByIdentifier(ctx context.Context, kind utils.IdentifierKind, value string) (*entity.User, error) {
	var (
		user *entity.User
		err  error
	)
	switch kind {
	case utils.IdentifierPhone:
		user, err = s.repo.User.FindByPhone(ctx, value)
	case utils.IdentifierEmail:
		user, err = s.repo.User.FindByEmail(ctx, value)
	default:
		return nil, ErrInvalidIdentifier
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *authService) createCodeOnlyUser(ctx context.Context, kind utils.IdentifierKind, value string) (*entity.User, error) {
	user := newUser(s.now())
	user.PasswordHash = utils.UnusablePassword()
	if kind == utils.IdentifierPhone {
		user.Phone = &value
	} else {
		user.Email = &value
	}

	err := s.repo.User.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicatePhone) {
		// a concurrent request created it first
		existing, ferr := s.findByIdentifier(ctx, kind, value)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Code-only account created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *authService) consume(ctx context.Context, v *entity.Verification) error {
	return consumeVerification(ctx, s.repo.Verification, s.deps.Metrics, v)
}

func (s *authService) fail(reason string, err error) error {
	s.deps.Metrics.FailureInc(reason)
	return err
}

func (s *authService) expiry() time.Duration {
	return expiryDelay(s.config)
}

// consumeVerification maps a lost consume race to ErrInvalidCode.
func consumeVerification(ctx context.Context, verifications repository.VerificationRepository, m *metrics.Verification, v *entity.Verification) error {
	ok, err := verifications.Consume(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	if !ok {
		m.FailureInc("invalid_code")
		return ErrInvalidCode
	}
	m.ConsumedInc(string(v.Channel))
	return nil
}

// scheduleExpiry queues invalidation of a stored verification. A verification
// the queue refused is invalidated at once.
func scheduleExpiry(ctx context.Context, verifications repository.VerificationRepository, expiry ExpiryScheduler, id uuid.UUID, delay time.Duration, log *zap.Logger) error {
	err := expiry.ScheduleExpiration(ctx, id, delay)
	if err == nil {
		return nil
	}

	log.Error("Failed to schedule expiration",
		zap.Error(err),
		zap.String("verification_id", id.String()),
	)
	if _, invErr := verifications.Invalidate(context.WithoutCancel(ctx), id); invErr != nil {
		log.Error("Failed to invalidate unscheduled verification",
			zap.Error(invErr),
			zap.String("verification_id", id.String()),
		)
	}
	return err
}

func (s *authService) hashPassword(password string) (string, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		var violation *utils.PasswordViolation
		if errors.As(err, &violation) {
			return "", &PasswordPolicyError{Detail: violation.Message}
		}
		s.log.Error("Failed to hash password", zap.Error(err))
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}

func expiryDelay(config *utils.Config) time.Duration {
	return time.Duration(config.OTP.ExpiryMinutes) * time.Minute
}

func newUser(now time.Time) *entity.User {
	return &entity.User{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		IsActive:           true,
		VerificationStatus: entity.StatusUnverified,
	}
}

func channelPtr(c entity.Channel) *entity.Channel {
	return &c
}
