package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmarket/service-booking/internal/domain/booking"
	"github.com/cleanmarket/service-booking/internal/domain/paymentmethod"
	"github.com/cleanmarket/service-booking/internal/pkg/domain"
)

type lifecycleTestContext struct {
	store      *memStore
	engine     *LifecycleEngine
	employerID uuid.UUID
	bookingID  uuid.UUID
	savedID    uuid.UUID
	err        error
}

func (c *lifecycleTestContext) reset() {
	c.store = newMemStore()
	c.engine = NewLifecycleEngine(c.store, &recordingPublisher{}, zap.NewNop())
	c.employerID = uuid.New()
	c.bookingID = uuid.Nil
	c.savedID = uuid.Nil
	c.err = nil
}

func (c *lifecycleTestContext) viewer() Viewer {
	return employer(c.employerID)
}

func (c *lifecycleTestContext) aBookingInStatus(status string) error {
	st, err := bookingDomain.ParseBookingStatus(status)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s := bookingDomain.Snapshot{
		ID:         uuid.New(),
		JobID:      uuid.New(),
		EmployerID: c.employerID,
		CleanerID:  uuid.New(),
		Status:     st,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if st != bookingDomain.StatusPendingCleanerConfirmation && st != bookingDomain.StatusRejected {
		s.CleanerConfirmed = true
	}
	if st == bookingDomain.StatusConfirmedActive || st == bookingDomain.StatusCompleted {
		ref := "TXN-PRIOR"
		s.PaymentReference = &ref
		s.PaymentMethod = paymentmethod.MethodCard
		s.PaidAt = &now
	}
	if st == bookingDomain.StatusCompleted {
		s.CompletedAt = &now
	}
	c.store.put(s)
	c.bookingID = s.ID
	return nil
}

func (c *lifecycleTestContext) aSavedMethodWithReference(method, reference string) error {
	m, err := paymentmethod.ParseMethod(method)
	if err != nil {
		return err
	}
	pm, err := paymentmethod.NewPaymentMethod(c.employerID, m, reference)
	if err != nil {
		return err
	}
	c.store.putMethod(pm)
	c.savedID = pm.ID()
	return nil
}

func (c *lifecycleTestContext) theEmployerPaysWithReference(reference, method string) error {
	_, c.err = c.engine.ProcessPayment(context.Background(), c.viewer(), c.bookingID, PaymentRequest{
		Reference: reference,
		Method:    method,
	})
	return nil
}

func (c *lifecycleTestContext) theEmployerPaysWithTheSavedMethod() error {
	_, c.err = c.engine.ProcessPayment(context.Background(), c.viewer(), c.bookingID, PaymentRequest{
		UseSaved:      true,
		SavedMethodID: c.savedID.String(),
	})
	return nil
}

func (c *lifecycleTestContext) theEmployerCompletesTheBooking() error {
	_, c.err = c.engine.CompleteBooking(context.Background(), c.viewer(), c.bookingID)
	return nil
}

func (c *lifecycleTestContext) theEmployerReviewsTheCleaner(rating int, comment string) error {
	_, c.err = c.engine.ReviewCleaner(context.Background(), c.viewer(), c.bookingID, ReviewRequest{
		Rating:  rating,
		Comment: comment,
	})
	return nil
}

func (c *lifecycleTestContext) theOperationSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %v", c.err)
	}
	return nil
}

func (c *lifecycleTestContext) theOperationFailsWith(kind string) error {
	if c.err == nil {
		return errors.New("expected an error, got none")
	}
	if got := domain.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected error kind %s, got %s (%v)", kind, got, c.err)
	}
	return nil
}

func (c *lifecycleTestContext) booking() (*bookingDomain.Booking, error) {
	bk := c.store.get(c.bookingID)
	if bk == nil {
		return nil, errors.New("booking not found")
	}
	return bk, nil
}

func (c *lifecycleTestContext) theBookingStatusIs(status string) error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	if string(bk.Status()) != status {
		return fmt.Errorf("expected status %s, got %s", status, bk.Status())
	}
	return nil
}

func (c *lifecycleTestContext) thePaymentReferenceIs(reference string) error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	if bk.PaymentReference() == nil || *bk.PaymentReference() != reference {
		return fmt.Errorf("expected payment reference %q, got %v", reference, bk.PaymentReference())
	}
	return nil
}

func (c *lifecycleTestContext) theBookingIsUnpaid() error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	if bk.PaidAt() != nil || bk.PaymentReference() != nil {
		return errors.New("expected booking to be unpaid")
	}
	return nil
}

func (c *lifecycleTestContext) theBookingHasNoReview() error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	if bk.CleanerReview() != nil {
		return fmt.Errorf("expected no review, got rating %d", bk.CleanerReview().Rating)
	}
	return nil
}

func (c *lifecycleTestContext) theReviewRatingIs(rating int) error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	if bk.CleanerReview() == nil || bk.CleanerReview().Rating != rating {
		return fmt.Errorf("expected review rating %d", rating)
	}
	return nil
}

func (c *lifecycleTestContext) theLegalActionsAre(list string) error {
	bk, err := c.booking()
	if err != nil {
		return err
	}
	got := make([]string, 0, 1)
	for _, a := range LegalActions(bk) {
		got = append(got, string(a))
	}
	if strings.Join(got, ",") != list {
		return fmt.Errorf("expected legal actions %q, got %q", list, strings.Join(got, ","))
	}
	return nil
}

func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a booking in status "([^"]*)"$`, tc.aBookingInStatus)
	ctx.Step(`^a saved "([^"]*)" method with reference "([^"]*)"$`, tc.aSavedMethodWithReference)

	// When steps
	ctx.Step(`^the employer pays with reference "([^"]*)" by "([^"]*)"$`, tc.theEmployerPaysWithReference)
	ctx.Step(`^the employer pays with the saved method$`, tc.theEmployerPaysWithTheSavedMethod)
	ctx.Step(`^the employer completes the booking$`, tc.theEmployerCompletesTheBooking)
	ctx.Step(`^the employer reviews the cleaner with rating (-?\d+) and comment "([^"]*)"$`, tc.theEmployerReviewsTheCleaner)

	// Then steps
	ctx.Step(`^the operation succeeds$`, tc.theOperationSucceeds)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^the booking status is "([^"]*)"$`, tc.theBookingStatusIs)
	ctx.Step(`^the payment reference is "([^"]*)"$`, tc.thePaymentReferenceIs)
	ctx.Step(`^the booking is unpaid$`, tc.theBookingIsUnpaid)
	ctx.Step(`^the booking has no review$`, tc.theBookingHasNoReview)
	ctx.Step(`^the review rating is (\d+)$`, tc.theReviewRatingIs)
	ctx.Step(`^the legal actions are "([^"]*)"$`, tc.theLegalActionsAre)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/booking_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
