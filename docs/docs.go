// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Stripe Webhook",
                "parameters": [
                    {"type": "string", "description": "Stripe signature header", "name": "Stripe-Signature", "in": "header", "required": true},
                    {"description": "Stripe event", "name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespWebhookReceived"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespWebhookError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.RespWebhookError"}}
                }
            }
        },
        "/api/create-checkout-session": {
            "post": {
                "security": [{"FirebaseAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Create Checkout Session",
                "parameters": [
                    {"description": "Price or plan", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.CreateCheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checkout.CheckoutSession"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}}
                }
            }
        },
        "/api/create-portal-session": {
            "post": {
                "security": [{"FirebaseAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Create Billing Portal Session",
                "parameters": [
                    {"description": "Return URL", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.CreatePortalSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checkout.PortalSession"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.RespSessionError"}}
                }
            }
        },
        "/api/v1/billing/access": {
            "get": {
                "security": [{"FirebaseAuth": []}],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Get Premium Access",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespAccess"}}
                }
            }
        },
        "/api/v1/admin/list_billing_records": {
            "post": {
                "security": [{"AdminKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List Billing Records (Admin)",
                "parameters": [
                    {"description": "List request with filters, pagination, and sorting", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ListBillingRecordsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespListBillingRecords"}}
                }
            }
        },
        "/api/v1/admin/get_billing_statistic": {
            "post": {
                "security": [{"AdminKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Get Billing Statistics (Admin)",
                "parameters": [
                    {"description": "Statistic request parameters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/statistics.BillingStatisticRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.RespBillingStatistic"}}
                }
            }
        }
    },
    "definitions": {
        "checkout.CreateCheckoutRequest": {
            "type": "object",
            "properties": {
                "priceId": {"type": "string"},
                "plan": {"type": "string"}
            }
        },
        "checkout.CheckoutSession": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "checkout.PortalSession": {
            "type": "object",
            "properties": {
                "url": {"type": "string"}
            }
        },
        "handlers.CreatePortalSessionRequest": {
            "type": "object",
            "properties": {
                "returnUrl": {"type": "string"}
            }
        },
        "handlers.SessionErrorBody": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "handlers.RespSessionError": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handlers.SessionErrorBody"}
            }
        },
        "handlers.RespWebhookReceived": {
            "type": "object",
            "properties": {
                "received": {"type": "boolean"}
            }
        },
        "handlers.RespWebhookError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "handlers.AccessView": {
            "type": "object"
        },
        "handlers.RespAccess": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"$ref": "#/definitions/handlers.AccessView"}
            }
        },
        "handlers.ListBillingRecordsRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"type": "object"}},
                "from": {"type": "integer"},
                "size": {"type": "integer"},
                "sort_by": {"type": "string"},
                "sort_order": {"type": "string"}
            }
        },
        "handlers.RespListBillingRecords": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object"}
            }
        },
        "statistics.BillingStatisticRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "array", "items": {"type": "object"}},
                "data_items": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.RespBillingStatistic": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "AdminKey": {"type": "apiKey", "name": "X-Admin-Key", "in": "header"},
        "FirebaseAuth": {"description": "Firebase ID token as \"Bearer <token>\".", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "StudyGenius Billing API",
	Description:      "Stripe billing reconciliation: checkout and portal sessions, webhook processing and premium access checks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
