package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SPML Provisioning Gateway",
        "description": "Receives the identity feed and keeps accounts, profiles and memberships in line with it.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "SPML", "description": "Provisioning feed operations"},
        {"name": "Ops", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Liveness and counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness of postgres and redis",
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "A dependency is down", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/spml/add": {
            "post": {
                "tags": ["SPML"],
                "summary": "Provision an account",
                "security": [{"BasicAuth": []}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SPMLRequest"}}
                ],
                "responses": {
                    "200": {"description": "Result triple", "schema": {"$ref": "#/definitions/Triple"}},
                    "401": {"description": "LoginFailure", "schema": {"$ref": "#/definitions/Triple"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/Triple"}},
                    "500": {"description": "InternalError", "schema": {"$ref": "#/definitions/Triple"}}
                }
            }
        },
        "/api/v1/spml/modify": {
            "post": {
                "tags": ["SPML"],
                "summary": "Record a modify request",
                "security": [{"BasicAuth": []}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SPMLRequest"}}
                ],
                "responses": {
                    "200": {"description": "Result triple", "schema": {"$ref": "#/definitions/Triple"}}
                }
            }
        },
        "/api/v1/spml/delete": {
            "post": {
                "tags": ["SPML"],
                "summary": "Record a delete request",
                "security": [{"BasicAuth": []}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SPMLRequest"}}
                ],
                "responses": {
                    "200": {"description": "Result triple", "schema": {"$ref": "#/definitions/Triple"}}
                }
            }
        },
        "/api/v1/spml/batch": {
            "post": {
                "tags": ["SPML"],
                "summary": "Process a batch of SPML requests in order",
                "security": [{"BasicAuth": []}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Overall triple with one response per sub-request", "schema": {"$ref": "#/definitions/Triple"}}
                }
            }
        },
        "/api/v1/spml/log/{login}": {
            "get": {
                "tags": ["SPML"],
                "summary": "List logged requests for a login",
                "security": [{"BasicAuth": []}, {"BearerAuth": []}],
                "parameters": [
                    {"name": "login", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer", "minimum": 1, "maximum": 100}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SPMLRequest": {
            "type": "object",
            "properties": {
                "requestId": {"type": "string"},
                "attributes": {
                    "type": "object",
                    "additionalProperties": {"type": "string"},
                    "example": {"CN": "smtann001", "Surname": "Smith", "Given Name": "Ann", "Email": "ann@example.org", "uctStudentStatus": "Active", "uctFaculty": "SCI", "uctCourseCode": "CSC1015F", "uctProgramCode": "SB014"}
                }
            }
        },
        "BatchItem": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["add", "modify", "delete"]},
                "requestId": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}}
            },
            "required": ["type"]
        },
        "BatchRequest": {
            "type": "object",
            "properties": {
                "requestId": {"type": "string"},
                "requests": {"type": "array", "items": {"$ref": "#/definitions/BatchItem"}}
            }
        },
        "Triple": {
            "type": "object",
            "properties": {
                "requestId": {"type": "string"},
                "result": {"type": "string", "enum": ["success", "failure"]},
                "error": {"type": "string"},
                "errorKind": {"type": "string", "enum": ["InvalidUsername", "UserAlreadyExists", "NoPermission", "UserLocked", "NoAffiliation", "LoginFailure", "InternalError", "VALIDATION_ERROR", "RateLimited"]},
                "errorMessage": {"type": "string"},
                "responses": {"type": "array", "items": {"$ref": "#/definitions/Triple"}}
            }
        },
        "RequestLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"},
                "body": {"type": "string"},
                "login": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"}
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
