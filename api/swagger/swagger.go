package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CRM Bridge API",
        "description": "HubSpot integration backend: OAuth credential lifecycle and company line-item retrieval",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "OAuth", "description": "HubSpot app installation flow"},
        {"name": "LineItems", "description": "Company line item retrieval"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/oauth/start": {
            "get": {
                "tags": ["OAuth"],
                "summary": "Begin the HubSpot OAuth flow",
                "responses": {
                    "302": {"description": "Redirect to the HubSpot authorize URL"}
                }
            }
        },
        "/oauth/callback": {
            "get": {
                "tags": ["OAuth"],
                "summary": "Complete the HubSpot OAuth flow",
                "parameters": [
                    {"name": "code", "in": "query", "type": "string", "required": true},
                    {"name": "state", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid or replayed state, missing code"},
                    "401": {"description": "Upstream exchange or introspection failed"}
                }
            }
        },
        "/api/companies/{companyId}/line-items": {
            "get": {
                "tags": ["LineItems"],
                "summary": "List line items for a company through its deals",
                "parameters": [
                    {"name": "companyId", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "X-HubSpot-Portal-Id", "in": "header", "type": "string", "required": true},
                    {"name": "X-HubSpot-Signature-V3", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing portal header or unsupported format"},
                    "401": {"description": "No usable credential, refresh failed, or bad signature"}
                }
            }
        }
    },
    "definitions": {
        "LineItem": {
            "type": "object",
            "properties": {
                "deal_name": {"type": "string"},
                "line_item_name": {"type": "string"},
                "quantity": {"type": "number"},
                "unit_price": {"type": "number"},
                "amount": {"type": "number"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
