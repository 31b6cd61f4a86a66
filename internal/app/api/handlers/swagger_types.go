package handlers

import (
	"github.com/studygenius/billing/internal/app/service/statistics"
	"github.com/studygenius/billing/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespAccess wraps AccessView in the standard envelope.
type RespAccess struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    AccessView               `json:"data"`
}

// RespListBillingRecords wraps ListBillingRecordsResponse in the standard envelope.
type RespListBillingRecords struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    ListBillingRecordsResponse `json:"data"`
}

// RespBillingStatistic wraps BillingStatisticResponse in the standard envelope.
type RespBillingStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.BillingStatisticResponse `json:"data"`
}

// RespWebhookReceived is the acknowledgement returned to Stripe.
type RespWebhookReceived struct {
	Received bool `json:"received"`
}

type RespWebhookError struct {
	Error string `json:"error"`
}

type SessionErrorBody struct {
	Message string `json:"message"`
}

// RespSessionError is the error shape of the checkout and portal endpoints.
type RespSessionError struct {
	Error SessionErrorBody `json:"error"`
}
