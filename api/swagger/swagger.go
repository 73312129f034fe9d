package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Admission API",
        "description": "Admission workflow, access policy and route guard",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Subjects", "description": "Applicant registration and status transitions"},
        {"name": "Access", "description": "Reachable areas and route guard decisions"}
    ],
    "paths": {
        "/subjects": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Register an applicant",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RegisterSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject with derived access",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Subject not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}/history": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List status history",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}/transitions": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Move a subject to the given status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "TRANSITION_UNAUTHORIZED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "SUBJECT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "PERSISTENCE_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "INVALID_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "PERSISTENCE_FAILURE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}/advance": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Move a subject to its next status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "PERSISTENCE_CONFLICT after retries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "INVALID_TRANSITION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access/areas": {
            "get": {
                "tags": ["Access"],
                "summary": "List areas reachable by the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access/guard": {
            "get": {
                "tags": ["Access"],
                "summary": "Evaluate the route guard for an area",
                "parameters": [
                    {"in": "query", "name": "area", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/GuardResponse"}},
                    "400": {"description": "Missing area", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access/resume": {
            "get": {
                "tags": ["Access"],
                "summary": "Resolve a resume token after sign-in",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/GuardResponse"}},
                    "400": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/areas/{area}": {
            "get": {
                "tags": ["Access"],
                "summary": "Open an application area",
                "parameters": [
                    {"in": "path", "name": "area", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Redirect to sign-in; X-Resume-Token header set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Redirect to home; X-Redirect-Area header set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterSubjectRequest": {
            "type": "object",
            "required": ["fullName", "email"],
            "properties": {
                "fullName": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["target"],
            "properties": {
                "target": {
                    "type": "string",
                    "enum": ["consultation_pending", "consultation_completed", "payment_pending", "enrollment_submitted", "student"]
                }
            }
        },
        "GuardResponse": {
            "type": "object",
            "properties": {
                "area": {"type": "string"},
                "allow": {"type": "boolean"},
                "redirectTo": {"type": "string"},
                "resumeToken": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
