package usecase

import (
	"context"
	"fmt"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/internal/dto/request"
	"account-service/internal/dto/response"
	"account-service/internal/storage"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VerificationService interface {
	RequestEmailVerification(ctx context.Context, userID uuid.UUID) error
	VerifyEmail(ctx context.Context, userID uuid.UUID, code string) (*response.UserResponse, error)
	SubmitIdentityDocument(ctx context.Context, userID uuid.UUID, req *request.SubmitDocumentRequest) (*response.UserResponse, error)
	VerifyIdentityDocument(ctx context.Context, actorID uuid.UUID, req *request.VerifyAccountRequest) (*response.UserResponse, error)
	ListPendingReviews(ctx context.Context, actorID uuid.UUID, page request.PageRequest) (*response.PageResponse[response.UserResponse], error)
}

type verificationService struct {
	repo   *repository.Repository
	deps   Dependencies
	config *utils.Config
	log    *zap.Logger
}

func NewVerificationService(
	repo *repository.Repository,
	deps Dependencies,
	config *utils.Config,
	log *zap.Logger,
) VerificationService {
	return &verificationService{
		repo:   repo,
		deps:   deps,
		config: config,
		log:    log,
	}
}

func (s *verificationService) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == nil || *user.Email == "" {
		return ErrEmailMissing
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}

	verification, created, err := s.repo.Verification.CreatePending(ctx, user.ID, entity.ChannelEmail)
	if err != nil {
		return fmt.Errorf("create pending verification: %w", err)
	}
	if created {
		s.deps.Metrics.IssuedInc(string(entity.ChannelEmail))
	}

	if err := scheduleExpiry(ctx, s.repo.Verification, s.deps.Expiry, verification.ID, expiryDelay(s.config), s.log); err != nil {
		return err
	}

	s.deps.Notifier.SendEmail(ctx, []string{*user.Email}, subjectEmailVerification,
		emailCodeMessage(verification.Code, s.config.OTP.ExpiryMinutes), "")

	s.log.Info("Email verification requested",
		zap.String("user_id", user.ID.String()),
		zap.Bool("created", created),
	)
	return nil
}

func (s *verificationService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) (*response.UserResponse, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	verification, err := s.repo.Verification.FindUsable(ctx, code, user.ID, channelPtr(entity.ChannelEmail))
	if err != nil {
		return nil, fmt.Errorf("find verification: %w", err)
	}
	if verification == nil {
		s.deps.Metrics.FailureInc("invalid_code")
		return nil, ErrInvalidCode
	}

	if user.IsEmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := consumeVerification(ctx, s.repo.Verification, s.deps.Metrics, verification); err != nil {
		return nil, err
	}

	if err := s.repo.User.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.IsEmailVerified = true

	s.log.Info("Email verified", zap.String("user_id", user.ID.String()))

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *verificationService) SubmitIdentityDocument(ctx context.Context, userID uuid.UUID, req *request.SubmitDocumentRequest) (*response.UserResponse, error) {
	if req == nil || req.NIDNumber == "" || req.Body == nil {
		return nil, ErrDocumentMissing
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Identity document validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Fields: errs}
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// only accounts never reviewed or rejected may (re)submit
	current := user.VerificationStatus
	if current != entity.StatusUnverified && current != entity.StatusNotVerified {
		return nil, &StateTransitionError{Current: current}
	}

	key := storage.DocumentKey(user.ID, req.Filename)
	if err := s.deps.Documents.Put(ctx, key, req.Body, req.Size, req.ContentType); err != nil {
		return nil, err
	}

	ok, err := s.repo.User.SetIdentityDocument(ctx, user.ID, req.NIDNumber, key, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, user.ID)
	}

	user.NIDNumber = &req.NIDNumber
	user.NIDDocumentKey = &key
	user.VerificationStatus = entity.StatusPending

	s.log.Info("Identity document submitted",
		zap.String("user_id", user.ID.String()),
		zap.String("document_key", key),
	)

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (s *verificationService) VerifyIdentityDocument(ctx context.Context, actorID uuid.UUID, req *request.VerifyAccountRequest) (*response.UserResponse, error) {
	// 1. Staff only
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}

	// 2. Target account
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrNoAccount
	}
	target, err := s.repo.User.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("find target user: %w", err)
	}
	if target == nil {
		return nil, ErrNoAccount
	}
	if !target.IsActive {
		return nil, ErrAccountInactive
	}

	// 3. Only pending reviews can be decided
	if target.VerificationStatus != entity.StatusPending {
		return nil, &StateTransitionError{Current: target.VerificationStatus}
	}

	status := entity.VerificationStatus(req.VerificationStatus)
	if !status.IsReviewOutcome() {
		return nil, ErrInvalidStatus
	}

	// 4. Apply unless another reviewer got there first
	ok, err := s.repo.User.UpdateVerificationStatus(ctx, target.ID, entity.StatusPending, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, target.ID)
	}
	target.VerificationStatus = status

	// 5. Notify
	if email := target.EmailAddress(); email != "" {
		s.deps.Notifier.SendEmail(ctx, []string{email}, subjectVerificationStatus, verificationStatusMessage(string(status)), "")
	}

	s.log.Info("Account verification decided",
		zap.String("user_id", target.ID.String()),
		zap.String("reviewer_id", actorID.String()),
		zap.String("status", string(status)),
	)

	resp := response.UserToResponse(target)
	return &resp, nil
}

func (s *verificationService) ListPendingReviews(ctx context.Context, actorID uuid.UUID, page request.PageRequest) (*response.PageResponse[response.UserResponse], error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	users, total, err := s.repo.User.ListByVerificationStatus(ctx, entity.StatusPending, page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}

	data := make([]response.UserResponse, 0, len(users))
	for i := range users {
		data = append(data, response.UserToResponse(&users[i]))
	}

	return response.NewPageResponse(data, page.Page, page.PerPage, total), nil
}

// ==================== HELPER METHODS ====================

func (s *verificationService) activeUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrNoAccount
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *verificationService) requireStaff(ctx context.Context, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return ErrUnauthenticated
	}
	actor, err := s.repo.User.FindByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("find actor: %w", err)
	}
	if actor == nil || !actor.IsActive || !actor.IsStaff {
		s.log.Warn("Non-staff verification attempt", zap.String("user_id", actorID.String()))
		return ErrForbidden
	}
	return nil
}

// transitionError reports the status that beat a compare-and-set.
func (s *verificationService) transitionError(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("reload user: %w", err)
	}
	if user == nil {
		return ErrNoAccount
	}
	return &StateTransitionError{Current: user.VerificationStatus}
}
