package payment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lms/domain"
	"lms/events"
	"lms/models"
	"lms/services/enrollment"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// stubGateway scripts the processor's responses per call.
type stubGateway struct {
	authorize   func(AuthorizeRequest) (*GatewayResult, error)
	retrieve    func(string) (*GatewayResult, error)
	refundErr   error
	refundCalls int
}

func (g *stubGateway) Authorize(req AuthorizeRequest) (*GatewayResult, error) {
	return g.authorize(req)
}

func (g *stubGateway) Retrieve(txID string) (*GatewayResult, error) {
	return g.retrieve(txID)
}

func (g *stubGateway) Refund(txID string, amountMinor *int64) (*GatewayResult, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &GatewayResult{TransactionID: txID, Status: GatewayStatusSucceeded}, nil
}

func succeedWith(txID string, feesMinor int64) func(AuthorizeRequest) (*GatewayResult, error) {
	return func(AuthorizeRequest) (*GatewayResult, error) {
		return &GatewayResult{TransactionID: txID, Status: GatewayStatusSucceeded, FeesMinor: feesMinor}, nil
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Enrollment{}, &models.Payment{}, &models.OutboxEvent{},
	))
	return db
}

func newService(t *testing.T, gw Gateway) (*Service, *gorm.DB) {
	db := newTestDB(t)
	d := events.NewDispatcher(db)
	return New(db, gw, enrollment.New(db, d), d), db
}

func seedCourse(t *testing.T, db *gorm.DB, price float64) *models.Course {
	t.Helper()
	course := models.Course{
		Title:        "Paid Course",
		Slug:         fmt.Sprintf("%s-course", t.Name()),
		InstructorID: 99,
		Category:     "Testing",
		Status:       models.CourseStatusPublished,
		Price:        price,
		Currency:     "USD",
		IsFree:       price == 0,
	}
	require.NoError(t, db.Create(&course).Error)
	return &course
}

func paymentCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	return count
}

func enrollmentCount(t *testing.T, db *gorm.DB, studentID, courseID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).Count(&count).Error)
	return count
}

func TestPurchaseFreeCourse(t *testing.T) {
	gw := &stubGateway{authorize: func(AuthorizeRequest) (*GatewayResult, error) {
		t.Fatal("free courses must not touch the gateway")
		return nil, nil
	}}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 0)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	assert.True(t, result.Free)
	assert.NotEmpty(t, result.ReceiptID)
	assert.Nil(t, result.Payment)
	require.NotNil(t, result.Enrollment)
	assert.EqualValues(t, 0, paymentCount(t, db))
	assert.EqualValues(t, 1, enrollmentCount(t, db, 1, course.ID))
}

func TestPurchaseSuccess(t *testing.T) {
	var seenAmount int64
	gw := &stubGateway{authorize: func(req AuthorizeRequest) (*GatewayResult, error) {
		seenAmount = req.AmountMinor
		return &GatewayResult{TransactionID: "tx_1", Status: GatewayStatusSucceeded, FeesMinor: 250}, nil
	}}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 49.99)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	assert.EqualValues(t, 4999, seenAmount)
	assert.Equal(t, GatewayStatusSucceeded, result.GatewayStatus)
	require.NotNil(t, result.Payment)
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, "tx_1", result.Payment.GatewayTxID)
	assert.InDelta(t, 2.50, result.Payment.Fees, 0.001)
	require.NotNil(t, result.Payment.NetAmount)
	assert.InDelta(t, 47.49, *result.Payment.NetAmount, 0.001)
	assert.NotNil(t, result.Payment.ProcessedAt)
	assert.EqualValues(t, 1, enrollmentCount(t, db, 1, course.ID))
}

func TestPurchaseGatewayRejection(t *testing.T) {
	gw := &stubGateway{authorize: func(AuthorizeRequest) (*GatewayResult, error) {
		return nil, errors.New("card_declined")
	}}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	_, err := svc.Purchase(1, course.ID, "pm_card")
	assert.True(t, domain.Is(err, domain.CodeGateway))

	// A rejected authorization leaves no ledger entry behind.
	assert.EqualValues(t, 0, paymentCount(t, db))
	assert.EqualValues(t, 0, enrollmentCount(t, db, 1, course.ID))
}

func TestPurchaseGatewayFailedStatus(t *testing.T) {
	gw := &stubGateway{authorize: func(AuthorizeRequest) (*GatewayResult, error) {
		return &GatewayResult{TransactionID: "tx_fail", Status: GatewayStatusFailed}, nil
	}}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	assert.Equal(t, GatewayStatusFailed, result.GatewayStatus)
	assert.Equal(t, models.PaymentStatusFailed, result.Payment.Status)
	assert.EqualValues(t, 0, enrollmentCount(t, db, 1, course.ID))
}

func TestPurchaseTimeoutLeavesPending(t *testing.T) {
	gw := &stubGateway{authorize: func(AuthorizeRequest) (*GatewayResult, error) {
		return nil, timeoutError{}
	}}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	assert.Equal(t, GatewayStatusPending, result.GatewayStatus)
	require.NotNil(t, result.Payment)
	assert.Equal(t, models.PaymentStatusPending, result.Payment.Status)
	assert.NotEmpty(t, result.Payment.GatewayTxID)
	assert.Nil(t, result.Enrollment)
	assert.EqualValues(t, 0, enrollmentCount(t, db, 1, course.ID))
}

func TestPurchaseAlreadyEnrolled(t *testing.T) {
	gw := &stubGateway{authorize: succeedWith("tx_dup", 0)}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	e := models.Enrollment{StudentID: 1, CourseID: course.ID, Status: models.EnrollmentStatusEnrolled}
	require.NoError(t, db.Create(&e).Error)

	_, err := svc.Purchase(1, course.ID, "pm_card")
	assert.True(t, domain.Is(err, domain.CodeConflict))
	assert.EqualValues(t, 0, paymentCount(t, db))
}

func TestConfirmSettlesPendingPayment(t *testing.T) {
	gw := &stubGateway{
		authorize: func(AuthorizeRequest) (*GatewayResult, error) { return nil, timeoutError{} },
	}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)
	txID := result.Payment.GatewayTxID

	gw.retrieve = func(id string) (*GatewayResult, error) {
		require.Equal(t, txID, id)
		return &GatewayResult{TransactionID: id, Status: GatewayStatusSucceeded, FeesMinor: 100}, nil
	}

	p, status, err := svc.Confirm(txID, 1)
	require.NoError(t, err)
	assert.Equal(t, GatewayStatusSucceeded, status)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.NetAmount)
	assert.InDelta(t, 19.0, *p.NetAmount, 0.001)
	assert.EqualValues(t, 1, enrollmentCount(t, db, 1, course.ID))

	// Confirming again is idempotent: no state change, no second enrollment.
	p, status, err = svc.Confirm(txID, 1)
	require.NoError(t, err)
	assert.Equal(t, GatewayStatusSucceeded, status)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.EqualValues(t, 1, enrollmentCount(t, db, 1, course.ID))
}

func TestConfirmTimeoutStaysPending(t *testing.T) {
	gw := &stubGateway{
		authorize: func(AuthorizeRequest) (*GatewayResult, error) { return nil, timeoutError{} },
	}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	gw.retrieve = func(string) (*GatewayResult, error) { return nil, timeoutError{} }

	p, status, err := svc.Confirm(result.Payment.GatewayTxID, 1)
	require.NoError(t, err)
	assert.Equal(t, GatewayStatusPending, status)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestConfirmScopedToPayer(t *testing.T) {
	gw := &stubGateway{authorize: succeedWith("tx_scope", 0)}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	_, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	gw.retrieve = func(id string) (*GatewayResult, error) {
		return &GatewayResult{TransactionID: id, Status: GatewayStatusSucceeded}, nil
	}
	_, _, err = svc.Confirm("tx_scope", 2)
	assert.True(t, domain.Is(err, domain.CodeNotFound))
}

func refundSetup(t *testing.T) (*Service, *gorm.DB, *stubGateway, *models.Payment, *models.Course) {
	t.Helper()
	gw := &stubGateway{authorize: succeedWith("tx_refund", 100)}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 30)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	return svc, db, gw, result.Payment, course
}

func TestRefundAdminOnly(t *testing.T) {
	svc, _, _, p, _ := refundSetup(t)

	student := &models.User{Role: models.RoleStudent}
	_, err := svc.Refund(p.ID, student, nil, "changed my mind")
	assert.True(t, domain.Is(err, domain.CodeAuthorization))

	instructor := &models.User{Role: models.RoleInstructor}
	_, err = svc.Refund(p.ID, instructor, nil, "changed my mind")
	assert.True(t, domain.Is(err, domain.CodeAuthorization))
}

func TestRefundRequiresReason(t *testing.T) {
	svc, _, _, p, _ := refundSetup(t)

	admin := &models.User{Role: models.RoleAdmin}
	_, err := svc.Refund(p.ID, admin, nil, "")
	assert.True(t, domain.Is(err, domain.CodeValidation))
}

func TestRefundFullAmountByDefault(t *testing.T) {
	svc, db, gw, p, course := refundSetup(t)

	admin := &models.User{Role: models.RoleAdmin}
	refunded, err := svc.Refund(p.ID, admin, nil, "course cancelled")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	assert.InDelta(t, 30.0, refunded.RefundAmount, 0.001)
	assert.Equal(t, "course cancelled", refunded.RefundReason)
	assert.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, 1, gw.refundCalls)

	// Refund revokes the seat.
	var e models.Enrollment
	require.NoError(t, db.Where("student_id = ? AND course_id = ?", 1, course.ID).First(&e).Error)
	assert.Equal(t, models.EnrollmentStatusRefunded, e.Status)
}

func TestRefundPartialAmount(t *testing.T) {
	svc, _, _, p, _ := refundSetup(t)

	admin := &models.User{Role: models.RoleAdmin}
	amount := 10.0
	refunded, err := svc.Refund(p.ID, admin, &amount, "partial goodwill refund")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, refunded.RefundAmount, 0.001)
}

func TestRefundAmountValidation(t *testing.T) {
	svc, _, _, p, _ := refundSetup(t)
	admin := &models.User{Role: models.RoleAdmin}

	tooMuch := 31.0
	_, err := svc.Refund(p.ID, admin, &tooMuch, "r")
	assert.True(t, domain.Is(err, domain.CodeValidation))

	zero := 0.0
	_, err = svc.Refund(p.ID, admin, &zero, "r")
	assert.True(t, domain.Is(err, domain.CodeValidation))
}

func TestRefundTwiceConflicts(t *testing.T) {
	svc, _, _, p, _ := refundSetup(t)
	admin := &models.User{Role: models.RoleAdmin}

	_, err := svc.Refund(p.ID, admin, nil, "first")
	require.NoError(t, err)
	_, err = svc.Refund(p.ID, admin, nil, "second")
	assert.True(t, domain.Is(err, domain.CodeConflict))
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	gw := &stubGateway{authorize: func(AuthorizeRequest) (*GatewayResult, error) { return nil, timeoutError{} }}
	svc, db := newService(t, gw)
	course := seedCourse(t, db, 20)

	result, err := svc.Purchase(1, course.ID, "pm_card")
	require.NoError(t, err)

	admin := &models.User{Role: models.RoleAdmin}
	_, err = svc.Refund(result.Payment.ID, admin, nil, "r")
	assert.True(t, domain.Is(err, domain.CodePrecondition))
}

func TestRefundGatewayFailureKeepsState(t *testing.T) {
	svc, db, gw, p, _ := refundSetup(t)
	gw.refundErr = errors.New("processor unavailable")

	admin := &models.User{Role: models.RoleAdmin}
	_, err := svc.Refund(p.ID, admin, nil, "r")
	assert.True(t, domain.Is(err, domain.CodeGateway))

	var got models.Payment
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	assert.Zero(t, got.RefundAmount)
}

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, models.ValidPaymentTransition(models.PaymentStatusPending, models.PaymentStatusCompleted))
	assert.True(t, models.ValidPaymentTransition(models.PaymentStatusPending, models.PaymentStatusFailed))
	assert.True(t, models.ValidPaymentTransition(models.PaymentStatusCompleted, models.PaymentStatusRefunded))
	assert.False(t, models.ValidPaymentTransition(models.PaymentStatusFailed, models.PaymentStatusCompleted))
	assert.False(t, models.ValidPaymentTransition(models.PaymentStatusRefunded, models.PaymentStatusCompleted))
	assert.False(t, models.ValidPaymentTransition(models.PaymentStatusPending, models.PaymentStatusRefunded))
}
