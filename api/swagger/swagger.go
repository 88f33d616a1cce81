package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "UMI Schedule API",
        "description": "Timetable scheduling and attendance lifecycle",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Weekly timetable with conflict detection"},
        {"name": "Instructors", "description": "Instructor availability"},
        {"name": "Attendance", "description": "Session capture and locking"},
        {"name": "Attendance Edit Requests", "description": "Corrections to locked records"},
        {"name": "Reports", "description": "Attendance percentages"}
    ],
    "paths": {
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List timetable entries",
                "parameters": [
                    {"name": "day_of_week", "in": "query", "type": "string"},
                    {"name": "instructor_id", "in": "query", "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "semester_id", "in": "query", "type": "string"},
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Create timetable entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TimetableEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/validate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Check a slot for conflicts without saving it",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TimetableEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get timetable entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Update timetable entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TimetableEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete timetable entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/timetable/instructors/{instructorId}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Weekly timetable of an instructor",
                "parameters": [{"name": "instructorId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructors/available": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Instructors free for a window",
                "parameters": [
                    {"name": "day_of_week", "in": "query", "required": true, "type": "string"},
                    {"name": "start_time", "in": "query", "required": true, "type": "string"},
                    {"name": "end_time", "in": "query", "required": true, "type": "string"},
                    {"name": "department_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Get or create the session of an entry on a date",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions/{id}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Session detail with records",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions/{id}/records/{studentId}": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Set one student's status while the session is open",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE"]}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/sessions/{id}/submit": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Lock a session by id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/mark": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Bulk mark attendance for an open session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/submit": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Lock a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/edit-requests": {
            "get": {
                "tags": ["Attendance Edit Requests"],
                "summary": "List edit requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "record_id", "in": "query", "type": "string"},
                    {"name": "batch_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Attendance Edit Requests"],
                "summary": "Request corrections to locked records",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEditRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pending request exists or session open", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/edit-requests/{id}": {
            "get": {
                "tags": ["Attendance Edit Requests"],
                "summary": "Get edit request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/edit-requests/{id}/resolve": {
            "post": {
                "tags": ["Attendance Edit Requests"],
                "summary": "Approve or reject an edit request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveEditRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/attendance/students/{studentId}/courses/{courseId}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Attendance percentage of a student in a course",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/attendance/courses/{courseId}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Attendance rollup of every student in a course",
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TimetableEntryRequest": {
            "type": "object",
            "required": ["day_of_week", "start_time", "end_time", "instructor_id", "course_id", "semester_id"],
            "properties": {
                "day_of_week": {"type": "string", "example": "MONDAY"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:00"},
                "room": {"type": "string"},
                "instructor_id": {"type": "string"},
                "course_id": {"type": "string"},
                "semester_id": {"type": "string"},
                "exclude_id": {"type": "string"}
            }
        },
        "SessionRequest": {
            "type": "object",
            "required": ["timetable_entry_id"],
            "properties": {
                "timetable_entry_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-01-10"}
            }
        },
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["timetable_entry_id", "items"],
            "properties": {
                "timetable_entry_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-01-10"},
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "student_id": {"type": "string"},
                            "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE"]}
                        }
                    }
                }
            }
        },
        "SubmitAttendanceRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "timetable_entry_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-01-10"}
            }
        },
        "CreateEditRequest": {
            "type": "object",
            "required": ["record_ids", "proposed_status", "reason"],
            "properties": {
                "record_ids": {"type": "array", "items": {"type": "string"}},
                "proposed_status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE"]},
                "reason": {"type": "string"}
            }
        },
        "ResolveEditRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVE", "REJECT"]},
                "admin_notes": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
