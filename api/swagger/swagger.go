package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Pet Class Admission API",
        "description": "Training class capacity admission, waitlist and schedule service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Staff authentication"},
        {"name": "Classes", "description": "Training class catalog and sessions"},
        {"name": "Enrollments", "description": "Capacity-gated admission and drops"},
        {"name": "Waitlist", "description": "Per-class FIFO waitlist"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a staff user",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List training classes",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create a class and generate its session schedule",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get class detail",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Classes"],
                "summary": "Delete a class without enrollments",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Class has enrollments"}
                }
            }
        },
        "/classes/{id}/sessions": {
            "get": {
                "tags": ["Classes"],
                "summary": "List the generated session schedule",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/classes/{id}/waitlist": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "List the class waitlist by position",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/classes/{id}/roster/export": {
            "get": {
                "tags": ["Classes"],
                "summary": "Export the active roster as CSV or PDF",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a pet into a class",
                "responses": {
                    "201": {"description": "Enrolled"},
                    "409": {"description": "Class full or duplicate enrollment"}
                }
            }
        },
        "/enrollments/{id}": {
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Drop an enrollment and notify the waitlist head",
                "responses": {
                    "200": {"description": "Dropped"},
                    "404": {"description": "Not found or not active"}
                }
            }
        },
        "/waitlist": {
            "post": {
                "tags": ["Waitlist"],
                "summary": "Join a class waitlist",
                "responses": {
                    "201": {"description": "Joined"},
                    "409": {"description": "Already on waitlist"}
                }
            }
        },
        "/waitlist/{id}": {
            "delete": {
                "tags": ["Waitlist"],
                "summary": "Leave a class waitlist",
                "responses": {
                    "204": {"description": "Removed"},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "definitions": {
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
                "pagination": {"type": "object"},
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
