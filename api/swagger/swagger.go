package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Query API",
        "description": "Student and course enrollment store with composable filter queries.",
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
        {"name": "Students", "description": "Filter, export and remove students"},
        {"name": "Courses", "description": "Course administration"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "Filter students",
                "description": "Returns the students matching every provided criterion. The intersection strategy ignores a lone enrollment count bound; the chained strategy applies each bound on its own.",
                "parameters": [
                    {"name": "name", "in": "query", "type": "string"},
                    {"name": "email", "in": "query", "type": "string"},
                    {"name": "ageGreaterThan", "in": "query", "type": "integer"},
                    {"name": "ageLessThan", "in": "query", "type": "integer"},
                    {"name": "enrollmentsCountGreaterThan", "in": "query", "type": "integer"},
                    {"name": "enrollmentsCountLessThan", "in": "query", "type": "integer"},
                    {"name": "courseName", "in": "query", "type": "string"},
                    {"name": "courseGrade", "in": "query", "type": "string", "enum": ["A", "B", "C", "D", "F"]},
                    {"name": "strategy", "in": "query", "type": "string", "enum": ["intersection", "chained"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/StudentListEnvelope"}},
                    "400": {"description": "Malformed parameter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Storage unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export filtered students",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "name", "in": "query", "type": "string"},
                    {"name": "email", "in": "query", "type": "string"},
                    {"name": "ageGreaterThan", "in": "query", "type": "integer"},
                    {"name": "ageLessThan", "in": "query", "type": "integer"},
                    {"name": "enrollmentsCountGreaterThan", "in": "query", "type": "integer"},
                    {"name": "enrollmentsCountLessThan", "in": "query", "type": "integer"},
                    {"name": "courseName", "in": "query", "type": "string"},
                    {"name": "courseGrade", "in": "query", "type": "string"},
                    {"name": "strategy", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered file", "schema": {"type": "file"}},
                    "400": {"description": "Malformed parameter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "delete": {
                "tags": ["Students"],
                "summary": "Delete student",
                "description": "Removes the student and its enrollments.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "description": "Creates a course together with the enrollments it owns.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "head": {
                "tags": ["Courses"],
                "summary": "Check course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Exists"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete course",
                "description": "Removes the course and its enrollments.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "age": {"type": "integer"},
                "email": {"type": "string"}
            }
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "required": ["student_id", "grade"],
            "properties": {
                "student_id": {"type": "string"},
                "grade": {"type": "string", "enum": ["A", "B", "C", "D", "F"]},
                "notes": {"type": "string"}
            }
        },
        "CreateCourseRequest": {
            "type": "object",
            "required": ["name", "credits"],
            "properties": {
                "name": {"type": "string"},
                "credits": {"type": "integer", "minimum": 1, "maximum": 8},
                "enrollments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/CreateEnrollmentRequest"}
                }
            }
        },
        "QueryMeta": {
            "type": "object",
            "properties": {
                "strategy": {"type": "string"},
                "count": {"type": "integer"},
                "cache_hit": {"type": "boolean"}
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
        "StudentListEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/Student"}},
                "meta": {"$ref": "#/definitions/QueryMeta"}
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
