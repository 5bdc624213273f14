package payment

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lms/domain"
	"lms/events"
	"lms/models"
)

// Service is the payment ledger: it creates payment records, reconciles
// gateway confirmations and processes refunds. Gateway calls block the
// request path and must settle before any payment state is written; no
// optimistic completion is ever recorded.
type Service struct {
	db          *gorm.DB
	gateway     Gateway
	enrollments Enroller
	dispatcher  *events.Dispatcher
}

// Enroller is the slice of the enrollment lifecycle manager the ledger
// drives: enrollment creation on successful payment and access revocation on
// refund.
type Enroller interface {
	Enroll(studentID, courseID uint) (*models.Enrollment, error)
	MarkRefunded(studentID, courseID uint) error
}

func New(db *gorm.DB, gateway Gateway, enrollments Enroller, dispatcher *events.Dispatcher) *Service {
	return &Service{db: db, gateway: gateway, enrollments: enrollments, dispatcher: dispatcher}
}

// PurchaseResult is the outcome of a purchase request. Free courses skip the
// gateway entirely and carry only a synthetic receipt, never a payment row.
type PurchaseResult struct {
	Free          bool               `json:"free"`
	ReceiptID     string             `json:"receipt_id,omitempty"`
	GatewayStatus string             `json:"gateway_status,omitempty"`
	Payment       *models.Payment    `json:"payment,omitempty"`
	Enrollment    *models.Enrollment `json:"enrollment,omitempty"`
}

// Purchase starts a course purchase for the student. Paid courses are
// authorized through the gateway; a synchronous success enrolls immediately,
// anything indeterminate leaves the payment pending for Confirm to resolve.
func (s *Service) Purchase(studentID, courseID uint, paymentMethod string) (*PurchaseResult, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false AND status = ?",
		courseID, models.CourseStatusPublished).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Course not found!")
		}
		return nil, domain.Internal(err)
	}

	// Free courses never produce a payment record.
	if !course.Purchasable() {
		e, err := s.enrollments.Enroll(studentID, courseID)
		if err != nil {
			return nil, err
		}
		return &PurchaseResult{Free: true, ReceiptID: uuid.NewString(), Enrollment: e}, nil
	}

	var existing models.Enrollment
	if err := s.db.Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&existing).Error; err == nil {
		return nil, domain.Conflict("Already enrolled in this course!")
	}

	amountMinor := int64(math.Round(course.Price * 100))
	idemKey := uuid.NewString()

	result, gwErr := s.gateway.Authorize(AuthorizeRequest{
		AmountMinor:    amountMinor,
		Currency:       course.Currency,
		PaymentMethod:  paymentMethod,
		IdempotencyKey: idemKey,
		Metadata: map[string]string{
			"courseId":  fmt.Sprint(courseID),
			"studentId": fmt.Sprint(studentID),
		},
	})
	if gwErr != nil && !IsTimeout(gwErr) {
		return nil, domain.Gateway("Payment gateway rejected the charge!", gwErr)
	}

	p := models.Payment{
		UserID:      studentID,
		CourseID:    &course.ID,
		Amount:      course.Price,
		Currency:    course.Currency,
		Status:      models.PaymentStatusPending,
		Method:      paymentMethod,
		Description: "Purchase of course: " + course.Title,
	}
	if gwErr != nil {
		// Timed out: outcome indeterminate. Record the charge under the
		// idempotency key and let Confirm settle it; never guess success.
		p.GatewayTxID = idemKey
	} else {
		p.GatewayTxID = result.TransactionID
		p.Fees = float64(result.FeesMinor) / 100
	}
	if err := s.db.Create(&p).Error; err != nil {
		return nil, domain.Internal(err)
	}

	out := &PurchaseResult{Payment: &p, GatewayStatus: GatewayStatusPending}
	if gwErr == nil {
		out.GatewayStatus = result.Status
		switch result.Status {
		case GatewayStatusSucceeded:
			if err := s.settle(&p); err != nil {
				return nil, err
			}
			out.Enrollment = s.ensureEnrollment(studentID, courseID)
		case GatewayStatusFailed:
			if err := s.transition(&p, models.PaymentStatusFailed); err != nil {
				return nil, err
			}
			s.dispatcher.Dispatch(events.New(events.PaymentFailed, events.AggregatePayment, p.ID).
				With("courseId", courseID).
				With("userId", studentID))
		}
	}
	return out, nil
}

// Confirm re-queries the gateway for the authoritative status of a pending
// payment and applies it. Confirming an already-completed payment returns
// the current state; the enrollment is created at most once.
func (s *Service) Confirm(gatewayTxID string, actorID uint) (*models.Payment, string, error) {
	var p models.Payment
	err := s.db.Where("gateway_tx_id = ? AND user_id = ?", gatewayTxID, actorID).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", domain.NotFound("Payment not found!")
		}
		return nil, "", domain.Internal(err)
	}

	result, gwErr := s.gateway.Retrieve(gatewayTxID)
	if gwErr != nil {
		if IsTimeout(gwErr) {
			// Still indeterminate: leave the payment as it is.
			return &p, GatewayStatusPending, nil
		}
		return nil, "", domain.Gateway("Payment gateway lookup failed!", gwErr)
	}

	if p.Status == models.PaymentStatusPending {
		switch result.Status {
		case GatewayStatusSucceeded:
			p.Fees = float64(result.FeesMinor) / 100
			if err := s.settle(&p); err != nil {
				return nil, "", err
			}
			if p.CourseID != nil {
				s.ensureEnrollment(p.UserID, *p.CourseID)
			}
		case GatewayStatusFailed:
			if err := s.transition(&p, models.PaymentStatusFailed); err != nil {
				return nil, "", err
			}
			s.dispatcher.Dispatch(events.New(events.PaymentFailed, events.AggregatePayment, p.ID).
				With("userId", p.UserID))
		}
	}
	return &p, result.Status, nil
}

// settle moves a pending payment to completed: net amount is computed here
// and only here, once the status becomes completed.
func (s *Service) settle(p *models.Payment) error {
	if err := s.transition(p, models.PaymentStatusCompleted); err != nil {
		return err
	}
	net := p.Amount - p.Fees
	now := time.Now()
	p.NetAmount = &net
	p.ProcessedAt = &now
	if err := s.db.Save(p).Error; err != nil {
		return domain.Internal(err)
	}
	s.dispatcher.Dispatch(events.New(events.PaymentCompleted, events.AggregatePayment, p.ID).
		With("userId", p.UserID).
		With("amount", p.Amount).
		With("currency", p.Currency))
	return nil
}

// ensureEnrollment creates the enrollment a successful payment entitles the
// payer to. An existing enrollment is fine: confirming twice must not
// double-enroll.
func (s *Service) ensureEnrollment(studentID, courseID uint) *models.Enrollment {
	e, err := s.enrollments.Enroll(studentID, courseID)
	if err != nil {
		if domain.Is(err, domain.CodeConflict) {
			return nil
		}
		// The payment is already settled; enrollment creation failures are
		// surfaced through reconciliation, not by unwinding the payment.
		log.Printf("[PAYMENTS] enrollment for student %d in course %d failed: %v", studentID, courseID, err)
		return nil
	}
	return e
}

// Refund reverses a completed payment through the gateway, then records the
// refund and revokes course access.
func (s *Service) Refund(paymentID uint, actor *models.User, amount *float64, reason string) (*models.Payment, error) {
	if actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Only admins can process refunds!")
	}
	if reason == "" {
		return nil, domain.Validation("Refund reason is required!")
	}

	var p models.Payment
	err := s.db.Where("id = ?", paymentID).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Payment not found!")
		}
		return nil, domain.Internal(err)
	}

	if p.Status == models.PaymentStatusRefunded {
		return nil, domain.Conflict("Payment already refunded!")
	}
	if p.Status != models.PaymentStatusCompleted {
		return nil, domain.Precondition("Can only refund completed payments!")
	}

	refundAmount := p.Amount
	if amount != nil {
		if *amount <= 0 || *amount > p.Amount {
			return nil, domain.Validation("Refund amount must be positive and not exceed the payment amount!")
		}
		refundAmount = *amount
	}

	// The gateway reversal must settle before any local state changes.
	refundMinor := int64(math.Round(refundAmount * 100))
	if _, gwErr := s.gateway.Refund(p.GatewayTxID, &refundMinor); gwErr != nil {
		return nil, domain.Gateway("Payment gateway refund failed!", gwErr)
	}

	if err := s.transition(&p, models.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	now := time.Now()
	p.RefundAmount = refundAmount
	p.RefundReason = reason
	p.RefundedAt = &now
	if err := s.db.Save(&p).Error; err != nil {
		return nil, domain.Internal(err)
	}

	// A refunded purchase no longer entitles the payer to the course.
	if p.CourseID != nil {
		if err := s.enrollments.MarkRefunded(p.UserID, *p.CourseID); err != nil {
			log.Printf("[PAYMENTS] revoking access for user %d in course %d failed: %v", p.UserID, *p.CourseID, err)
		}
	}

	s.dispatcher.Dispatch(events.New(events.PaymentRefunded, events.AggregatePayment, p.ID).
		With("userId", p.UserID).
		With("amount", refundAmount).
		With("reason", reason))
	return &p, nil
}

// transition enforces the payment state machine.
func (s *Service) transition(p *models.Payment, to string) error {
	if !models.ValidPaymentTransition(p.Status, to) {
		return domain.InvalidTransition(
			fmt.Sprintf("Payment cannot move from %s to %s!", p.Status, to))
	}
	p.Status = to
	if err := s.db.Save(p).Error; err != nil {
		return domain.Internal(err)
	}
	return nil
}

// Get returns a payment visible to its payer or an admin.
func (s *Service) Get(paymentID uint, actor *models.User) (*models.Payment, error) {
	var p models.Payment
	err := s.db.Where("id = ?", paymentID).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Payment not found!")
		}
		return nil, domain.Internal(err)
	}
	if p.UserID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Not authorized to view this payment!")
	}
	return &p, nil
}

// ListForUser returns a user's payments, newest first.
func (s *Service) ListForUser(userID uint, status string, page, limit int) ([]models.Payment, int64, error) {
	query := s.db.Model(&models.Payment{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.Internal(err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var payments []models.Payment
	err := query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, domain.Internal(err)
	}
	return payments, total, nil
}

// CourseSummary aggregates a course's completed payments for its instructor
// or an admin.
type CourseSummary struct {
	TotalRevenue     float64          `json:"total_revenue"`
	TotalFees        float64          `json:"total_fees"`
	NetRevenue       float64          `json:"net_revenue"`
	TransactionCount int64            `json:"transaction_count"`
	Payments         []models.Payment `json:"payments"`
}

// CoursePayments returns the completed payments and revenue summary for a
// course.
func (s *Service) CoursePayments(courseID uint, actor *models.User) (*CourseSummary, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_deleted = false", courseID).First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFound("Course not found!")
		}
		return nil, domain.Internal(err)
	}
	if course.InstructorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, domain.Authorization("Not authorized to view payments for this course!")
	}

	var payments []models.Payment
	err = s.db.Where("course_id = ? AND status = ?", courseID, models.PaymentStatusCompleted).
		Order("processed_at desc").
		Find(&payments).Error
	if err != nil {
		return nil, domain.Internal(err)
	}

	summary := &CourseSummary{Payments: payments, TransactionCount: int64(len(payments))}
	for _, p := range payments {
		summary.TotalRevenue += p.Amount
		summary.TotalFees += p.Fees
	}
	summary.NetRevenue = summary.TotalRevenue - summary.TotalFees
	return summary, nil
}
