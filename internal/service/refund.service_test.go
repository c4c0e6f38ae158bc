package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/payment"
	paymock "shopbot/internal/infrastructure/payment/mock"
	repomock "shopbot/internal/repo/mock"
	"shopbot/internal/service"
	svcmock "shopbot/internal/service/mock"
)

type prepareRefundMocks func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, notifier *svcmock.MockNotificationService)

func TestRefundService_CreateRefund(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name      string
		mock      prepareRefundMocks
		expResult domain.RefundResult
	}{
		{
			name: "paid order refunded",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, notifier *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").
					Return(&payment.Refund{ID: "re_9", Status: "succeeded", Amount: 5000}, nil)
				repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(true, nil)
				notifier.EXPECT().Refunded(gomock.Any(), gomock.Any()).Return(true)
			},
			expResult: domain.RefundResult{Success: true, RefundID: "re_9"},
		},
		{
			name: "notification failure does not fail refund",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, notifier *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").Return(&payment.Refund{ID: "re_9"}, nil)
				repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(true, nil)
				notifier.EXPECT().Refunded(gomock.Any(), gomock.Any()).Return(false)
			},
			expResult: domain.RefundResult{Success: true, RefundID: "re_9"},
		},
		{
			name: "order not found",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(nil, nil)
			},
			expResult: domain.RefundResult{Kind: domain.KindNotFound, Error: "Order not found"},
		},
		{
			name: "already refunded never reaches processor",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderRefunded), nil)
			},
			expResult: domain.RefundResult{Kind: domain.KindAlreadyTerminal, Error: "Order already refunded"},
		},
		{
			name: "missing payment intent never reaches processor",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPending), nil)
			},
			expResult: domain.RefundResult{Kind: domain.KindMissingPrecondition, Error: "Payment intent not found"},
		},
		{
			name: "processor says already refunded",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").Return(nil, domain.ErrAlreadyRefunded)
			},
			expResult: domain.RefundResult{Kind: domain.KindAlreadyTerminal, Error: "Order already refunded"},
		},
		{
			name: "processor lost the payment intent",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").Return(nil, domain.ErrPaymentIntentNotFound)
			},
			expResult: domain.RefundResult{Kind: domain.KindMissingPrecondition, Error: "Payment intent not found"},
		},
		{
			name: "processor failure carries its message",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").
					Return(nil, &domain.UpstreamError{Code: "rate_limit", Message: "Too many requests"})
			},
			expResult: domain.RefundResult{Kind: domain.KindUpstreamFailure, Error: "Too many requests"},
		},
		{
			name: "webhook recorded refund first",
			mock: func(repo *repomock.MockOrderRepo, gateway *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
				gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").Return(&payment.Refund{ID: "re_9"}, nil)
				repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(false, nil)
				repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderRefunded), nil)
			},
			expResult: domain.RefundResult{Success: true, RefundID: "re_9"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			repo := repomock.NewMockOrderRepo(mockCtrl)
			gateway := paymock.NewMockGateway(mockCtrl)
			notifier := svcmock.NewMockNotificationService(mockCtrl)
			test.mock(repo, gateway, notifier)

			orders := service.NewOrderService(repo, notifier, logger)
			s := service.NewRefundService(repo, orders, gateway, logger)

			assert.Equal(t, test.expResult, s.CreateRefund(context.Background(), 7))
		})
	}
}

func TestRefundService_CreateRefund_StoreFailureAfterProcessor(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	repo := repomock.NewMockOrderRepo(mockCtrl)
	gateway := paymock.NewMockGateway(mockCtrl)
	notifier := svcmock.NewMockNotificationService(mockCtrl)

	repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(testOrder(domain.OrderPaid), nil)
	gateway.EXPECT().CreateRefund(gomock.Any(), "pi_1", "refund-ext-7").Return(&payment.Refund{ID: "re_9"}, nil)
	repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(false, errors.New("connection reset"))

	logger := zap.NewNop()
	s := service.NewRefundService(repo, service.NewOrderService(repo, notifier, logger), gateway, logger)
	res := s.CreateRefund(context.Background(), 7)

	assert.False(t, res.Success)
	assert.Equal(t, "re_9", res.RefundID)
	assert.Equal(t, domain.KindInternal, res.Kind)
	assert.False(t, service.IsRefundFinal(res))
}

func TestRefundService_CreateRefund_RetryUsesSameKey(t *testing.T) {
	logger := zap.NewNop()
	fake := payment.NewFakeGateway("whsec_test")
	sess, err := fake.CreateCheckoutSession(context.Background(), payment.CheckoutRequest{Amount: 5000, Currency: "usd", ProductName: "Hoodie"})
	require.NoError(t, err)
	pi := fake.CompleteSession(sess.ID)

	mockCtrl := gomock.NewController(t)
	repo := repomock.NewMockOrderRepo(mockCtrl)
	notifier := svcmock.NewMockNotificationService(mockCtrl)

	order := testOrder(domain.OrderPaid)
	order.PaymentIntentID = pi

	// first attempt: the store write fails after money moved
	repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(order, nil)
	repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), gomock.Any()).Return(false, errors.New("connection reset"))
	// retry: the processor replays the same refund
	repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(order, nil)
	repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), gomock.Any()).Return(true, nil)
	notifier.EXPECT().Refunded(gomock.Any(), gomock.Any()).Return(true)

	s := service.NewRefundService(repo, service.NewOrderService(repo, notifier, logger), fake, logger)

	first := s.CreateRefund(context.Background(), 7)
	require.False(t, first.Success)
	second := s.CreateRefund(context.Background(), 7)
	require.True(t, second.Success)

	assert.Equal(t, first.RefundID, second.RefundID)
	assert.Equal(t, 2, fake.RefundCalls())
}

func TestRefundService_ProcessRefundWebhook(t *testing.T) {
	logger := zap.NewNop()
	storeErr := errors.New("connection reset")

	tests := []struct {
		name     string
		mock     prepareRefundMocks
		expError error
	}{
		{
			name: "paid order marked refunded",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, notifier *svcmock.MockNotificationService) {
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(testOrder(domain.OrderPaid), nil)
				repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(true, nil)
				notifier.EXPECT().Refunded(gomock.Any(), gomock.Any()).Return(true)
			},
		},
		{
			name: "unknown payment intent",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(nil, nil)
			},
		},
		{
			name: "already refunded sends nothing",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(testOrder(domain.OrderRefunded), nil)
			},
		},
		{
			name: "pending order ignored",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				order := testOrder(domain.OrderPending)
				order.PaymentIntentID = "pi_1"
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(order, nil)
			},
		},
		{
			name: "store fault surfaces",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(nil, storeErr)
			},
			expError: storeErr,
		},
		{
			name: "store fault on update surfaces",
			mock: func(repo *repomock.MockOrderRepo, _ *paymock.MockGateway, _ *svcmock.MockNotificationService) {
				repo.EXPECT().FindByPaymentIntent(gomock.Any(), "pi_1").Return(testOrder(domain.OrderPaid), nil)
				repo.EXPECT().MarkRefunded(gomock.Any(), int64(7), "re_9").Return(false, storeErr)
			},
			expError: storeErr,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			repo := repomock.NewMockOrderRepo(mockCtrl)
			gateway := paymock.NewMockGateway(mockCtrl)
			notifier := svcmock.NewMockNotificationService(mockCtrl)
			test.mock(repo, gateway, notifier)

			s := service.NewRefundService(repo, service.NewOrderService(repo, notifier, logger), gateway, logger)
			err := s.ProcessRefundWebhook(context.Background(), "pi_1", "re_9")

			if test.expError != nil {
				assert.ErrorIs(t, err, test.expError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsRefundFinal(t *testing.T) {
	assert.True(t, service.IsRefundFinal(domain.RefundSucceeded("re_1")))
	assert.True(t, service.IsRefundFinal(domain.RefundFailed(domain.ErrAlreadyRefunded)))
	assert.True(t, service.IsRefundFinal(domain.RefundFailed(domain.ErrOrderNotFound)))
	assert.True(t, service.IsRefundFinal(domain.RefundFailed(&domain.UpstreamError{Code: "api_error", Message: "timeout"})))
	assert.False(t, service.IsRefundFinal(domain.RefundFailed(errors.New("connection reset"))))
}

func TestRefundService_CreateRefund_UpstreamFailureReplayed(t *testing.T) {
	logger := zap.NewNop()
	fake := payment.NewFakeGateway("whsec_test")
	sess, err := fake.CreateCheckoutSession(context.Background(), payment.CheckoutRequest{Amount: 5000, Currency: "usd", ProductName: "Hoodie"})
	require.NoError(t, err)
	pi := fake.CompleteSession(sess.ID)

	mockCtrl := gomock.NewController(t)
	repo := repomock.NewMockOrderRepo(mockCtrl)
	notifier := svcmock.NewMockNotificationService(mockCtrl)

	order := testOrder(domain.OrderPaid)
	order.PaymentIntentID = pi
	repo.EXPECT().FindById(gomock.Any(), int64(7)).Return(order, nil).Times(2)

	s := service.NewRefundService(repo, service.NewOrderService(repo, notifier, logger), fake, logger)

	fake.FailNextRefund(&domain.UpstreamError{Code: "balance_insufficient", Message: "Insufficient funds"})
	first := s.CreateRefund(context.Background(), 7)
	require.False(t, first.Success)
	assert.Equal(t, domain.KindUpstreamFailure, first.Kind)
	assert.True(t, service.IsRefundFinal(first))

	// same order, same key: the processor answers with the cached failure
	second := s.CreateRefund(context.Background(), 7)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, fake.RefundCalls())
}
