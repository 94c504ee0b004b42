// Package docs は swag init で生成される形式の Swagger 定義。
// ハンドラの godoc コメントを変更したら `swag init -g main.go` で作り直す。
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a member account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/auth.SignupRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in and receive a bearer token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LoginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        },
        "/books": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "List books",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query"},
                    {"type": "string", "name": "genre", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "Add a book",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/books.CreateBookRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/books.BookResponse"}}}
            }
        },
        "/borrow/request": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["borrow"],
                "summary": "Request to borrow a book",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/borrowing.SubmitRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/borrowing.RequestResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        },
        "/borrow/get-requests": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["borrow"],
                "summary": "Pending borrow requests, oldest first",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/borrow/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["borrow"],
                "summary": "Approve a pending request and create the borrow",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/borrowing.ApproveRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/borrowing.RequestResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        },
        "/borrow/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["borrow"],
                "summary": "Reject a pending request with a reason",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/borrowing.RejectRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/borrowing.RequestResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        },
        "/borrow/overdue": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["borrow"],
                "summary": "Unreturned borrows past their expected return date",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/borrow/lib-stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["dashboard"],
                "summary": "Librarian dashboard counters",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dashboard.LibStats"}}}
            }
        },
        "/users/librarians": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Create a librarian account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/accounts.CreateLibrarianRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/auth.UserResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/apperr.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "apperr.APIError": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "auth.SignupRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {"name": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}}
        },
        "auth.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "auth.LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/auth.UserResponse"}}
        },
        "auth.UserResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "is_disabled": {"type": "boolean"},
                "created_at": {"type": "string"}
            }
        },
        "accounts.CreateLibrarianRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {"name": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}}
        },
        "books.CreateBookRequest": {
            "type": "object",
            "required": ["author", "title"],
            "properties": {
                "title": {"type": "string"},
                "author": {"type": "string"},
                "genre": {"type": "string"},
                "description": {"type": "string"},
                "publication_date": {"type": "string"},
                "total_copies": {"type": "integer"},
                "copies_available": {"type": "integer"},
                "overdue_days": {"type": "integer"},
                "image_url": {"type": "string"}
            }
        },
        "books.BookResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "author": {"type": "string"},
                "genre": {"type": "string"},
                "total_copies": {"type": "integer"},
                "copies_available": {"type": "integer"},
                "overdue_days": {"type": "integer"}
            }
        },
        "borrowing.SubmitRequest": {
            "type": "object",
            "required": ["book_id"],
            "properties": {"book_id": {"type": "integer"}}
        },
        "borrowing.ApproveRequest": {
            "type": "object",
            "required": ["request_id"],
            "properties": {"request_id": {"type": "integer"}}
        },
        "borrowing.RejectRequest": {
            "type": "object",
            "required": ["request_id"],
            "properties": {"request_id": {"type": "integer"}, "reason": {"type": "string"}}
        },
        "borrowing.RequestResult": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "request": {"type": "object"}}
        },
        "dashboard.LibStats": {
            "type": "object",
            "properties": {
                "total_books": {"type": "integer"},
                "available_books": {"type": "integer"},
                "total_members": {"type": "integer"},
                "total_librarians": {"type": "integer"},
                "pending_borrow_count": {"type": "integer"},
                "pending_return_count": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LIBRIS API",
	Description:      "Library portal backend: catalog, borrow requests, returns and overdue tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
