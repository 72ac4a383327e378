package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/storage"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrPaymentProofNotAllowed = errors.New("payment method does not take a proof upload")
	ErrPaymentAlreadyDecided  = errors.New("payment verification already decided")
	ErrNoProofSubmitted       = errors.New("no payment proof submitted")
)

const (
	proofFolder  = "payment-proofs"
	maxProofSize = 5 * 1024 * 1024
)

var allowedProofTypes = []string{"image/jpeg", "image/png", "image/webp"}

// PaymentService gates orders behind staff verification of payment
// proofs. GCash orders cannot progress until a proof is verified;
// in-store orders only once a proof was actually uploaded.
type PaymentService interface {
	RequestProofUpload(ctx context.Context, userID, orderID uint, filename, contentType string, size int64) (*storage.UploadSlot, error)
	AttachProof(ctx context.Context, userID, orderID uint, fileURL string) (*model.Order, error)
	Decide(ctx context.Context, orderID uint, verified bool, actor string) (*model.Order, error)
}

type paymentService struct {
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	notifier  NotificationService
	store     storage.ProofStorage
	orderCfg  config.OrderConfig
}

func NewPaymentService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
	store storage.ProofStorage,
	orderCfg config.OrderConfig,
) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		store:     store,
		orderCfg:  orderCfg,
	}
}

func proofEligible(method model.PaymentMethod) bool {
	return method == model.PaymentMethodGCash || method == model.PaymentMethodInStore
}

// RequestProofUpload hands the customer a presigned slot for the proof
// image. Nothing is recorded until AttachProof confirms the upload.
func (s *paymentService) RequestProofUpload(ctx context.Context, userID, orderID uint, filename, contentType string, size int64) (*storage.UploadSlot, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !proofEligible(order.PaymentMethod) {
		return nil, ErrPaymentProofNotAllowed
	}
	if order.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	if err := s.store.ValidateFileSize(size, maxProofSize); err != nil {
		return nil, err
	}
	if err := s.store.ValidateContentType(contentType, allowedProofTypes); err != nil {
		return nil, err
	}

	slot, err := s.store.PresignUpload(ctx, filename, contentType, proofFolder)
	if err != nil {
		logger.Error("Failed to presign proof upload", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	logger.Info("Presigned payment proof upload", map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
		"key":      slot.Key,
	})
	return slot, nil
}

// AttachProof records the uploaded proof URL and resets verification to
// PENDING, including after a rejection, so the customer can resubmit.
func (s *paymentService) AttachProof(ctx context.Context, userID, orderID uint, fileURL string) (*model.Order, error) {
	if fileURL == "" {
		return nil, ErrNoProofSubmitted
	}

	err := withRetry(ctx, s.orderCfg.MaxRetryAttempts, s.orderCfg.RetryBaseDelay, "payment.attach_proof", func() error {
		order, err := s.ownedOrder(ctx, userID, orderID)
		if err != nil {
			return err
		}
		if !proofEligible(order.PaymentMethod) {
			return ErrPaymentProofNotAllowed
		}
		if order.Status.IsTerminal() {
			return ErrInvalidTransition
		}

		return s.orderRepo.UpdateWithVersion(ctx, nil, order.ID, order.Version, map[string]interface{}{
			"payment_proof":  fileURL,
			"payment_status": model.PaymentStatusPending,
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.notifyStaff(ctx,
		"Payment proof submitted",
		fmt.Sprintf("Order %s has a payment proof waiting for verification.", order.ReferenceNo),
		fmt.Sprintf("/orders/%d", order.ID))

	logger.Info("Payment proof attached", map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
	})
	return order, nil
}

// Decide settles a PENDING verification. A decided payment stays
// decided; a fresh proof upload is the only way back to PENDING.
func (s *paymentService) Decide(ctx context.Context, orderID uint, verified bool, actor string) (*model.Order, error) {
	logger.Info("Deciding payment verification", map[string]interface{}{
		"order_id": orderID,
		"verified": verified,
		"actor":    actor,
	})

	var order *model.Order
	err := withRetry(ctx, s.orderCfg.MaxRetryAttempts, s.orderCfg.RetryBaseDelay, "payment.decide", func() error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.PaymentStatus != model.PaymentStatusPending {
			logger.Warn("Payment verification already decided", map[string]interface{}{
				"order_id": orderID,
				"status":   order.PaymentStatus,
			})
			return ErrPaymentAlreadyDecided
		}
		if proofEligible(order.PaymentMethod) && order.PaymentProof == "" {
			return ErrNoProofSubmitted
		}

		status := model.PaymentStatusRejected
		if verified {
			status = model.PaymentStatusVerified
		}
		return s.orderRepo.UpdateWithVersion(ctx, nil, order.ID, order.Version, map[string]interface{}{
			"payment_status": status,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		title, message := "Payment verified", fmt.Sprintf("Payment for order %s was verified. Your order will be processed shortly.", order.ReferenceNo)
		if !verified {
			title, message = "Payment rejected", fmt.Sprintf("Payment proof for order %s did not match. Please upload a new proof.", order.ReferenceNo)
		}
		if err := s.notifier.Enqueue(ctx, order.UserID, model.NotificationTypePaymentVerification,
			title, message, fmt.Sprintf("/orders/%d", order.ID)); err != nil {
			logger.Error("Failed to enqueue payment verification notification", err, map[string]interface{}{
				"order_id": orderID,
			})
		}
	}

	return s.orderRepo.FindByID(ctx, orderID)
}

func (s *paymentService) ownedOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *paymentService) notifyStaff(ctx context.Context, title, message, link string) {
	if s.notifier == nil || s.userRepo == nil {
		return
	}
	staffIDs, err := s.userRepo.FindIDsByRole(ctx, model.RoleStaff, model.RoleAdmin)
	if err != nil {
		logger.Error("Failed to resolve staff recipients", err, nil)
		return
	}
	s.notifier.EnqueueMany(ctx, staffIDs, model.NotificationTypePaymentVerification, title, message, link)
}
