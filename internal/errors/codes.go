package errors

// Error code constants, format CATEGORY_SPECIFIC_DETAIL. The frontend
// maps these codes to user-facing copy.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED" // login required
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked = "AUTH_TOKEN_REVOKED"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"
	AuthzStaffOnly    = "AUTHZ_STAFF_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Orders (ORDER_) ====================
	OrderNotFound           = "ORDER_NOT_FOUND"
	OrderInvalidTransition  = "ORDER_INVALID_TRANSITION"   // edge not in the status graph
	OrderPaymentNotVerified = "ORDER_PAYMENT_NOT_VERIFIED" // cannot progress past RECEIVED
	OrderEmptyItems         = "ORDER_EMPTY_ITEMS"
	OrderInsufficientStock  = "ORDER_INSUFFICIENT_STOCK"
	OrderDeliveryAddress    = "ORDER_DELIVERY_ADDRESS_REQUIRED"

	// ==================== Payments (PAYMENT_) ====================
	PaymentAlreadyDecided = "PAYMENT_ALREADY_DECIDED" // verify legal only while PENDING
	PaymentProofRequired  = "PAYMENT_PROOF_REQUIRED"
	PaymentProofTooLarge  = "PAYMENT_PROOF_TOO_LARGE"
	PaymentProofBadType   = "PAYMENT_PROOF_BAD_TYPE"

	// ==================== Loyalty (LOYALTY_) ====================
	LoyaltyInsufficientBalance = "LOYALTY_INSUFFICIENT_BALANCE"
	LoyaltyDuplicateEntry      = "LOYALTY_DUPLICATE_ENTRY" // retried earn/redeem for the same order
	LoyaltyNothingToRefund     = "LOYALTY_NOTHING_TO_REFUND"

	// ==================== Reviews (REVIEW_) ====================
	ReviewNotFound          = "REVIEW_NOT_FOUND"
	ReviewOrderNotCompleted = "REVIEW_ORDER_NOT_COMPLETED"
	ReviewAlreadyModerated  = "REVIEW_ALREADY_MODERATED"
	ReviewAlreadyExists     = "REVIEW_ALREADY_EXISTS"
	ReviewInvalidRating     = "REVIEW_INVALID_RATING"
	ReviewReasonRequired    = "REVIEW_REASON_REQUIRED"

	// ==================== Notifications (NOTIFICATION_) ====================
	NotificationNotFound = "NOTIFICATION_NOT_FOUND"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalStorageError  = "INTERNAL_STORAGE_ERROR"
	InternalConflictRetry = "INTERNAL_CONFLICT_RETRY_EXHAUSTED" // optimistic lock retries used up
)
