// Package docs holds the OpenAPI description of the simulator API served at
// /swagger/index.html. Keep it in step with the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "description": "Exchanges credentials for a bearer token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}],
                "responses": {
                    "200": {"description": "token", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/message"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        },
        "/api/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}],
                "responses": {
                    "200": {"description": "id", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        },
        "/api/data/latest": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["data"],
                "summary": "Latest device snapshot",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DeviceSnapshot"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        },
        "/api/data/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["data"],
                "summary": "Sensor history",
                "description": "Oldest first. Empty history is an empty array.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Lower bound (RFC3339 or YYYY-MM-DD)", "name": "since", "in": "query"},
                    {"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.DeviceSnapshot"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/message"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        },
        "/api/weather/latest": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["weather"],
                "summary": "Current weather",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.WeatherSnapshot"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        },
        "/api/command": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["command"],
                "summary": "Send pump command",
                "description": "Rejected with 409 while the pump cools down or is already in the requested state.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SendCommandRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.CommandResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.CommandResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.CommandResult"}}
                }
            }
        },
        "/api/command/log": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["command"],
                "summary": "Pump command log",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range. Date-only treated as end of day.", "name": "to", "in": "query"},
                    {"enum": ["TURN_PUMP_ON", "TURN_PUMP_OFF", "AUTOMATION"], "type": "string", "name": "action", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.PumpEvent"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/message"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/message"}}
                }
            }
        }
    },
    "definitions": {
        "message": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "credentials": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "operator@farm.local"},
                "password": {"type": "string", "example": "irrigate"}
            }
        },
        "handlers.SendCommandRequest": {
            "type": "object",
            "properties": {"action": {"type": "string", "example": "TURN_PUMP_ON"}}
        },
        "models.CommandResult": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "models.DeviceSnapshot": {
            "type": "object",
            "properties": {
                "soilMoisture": {"type": "number"},
                "pumpStatus": {"type": "string", "enum": ["ON", "OFF"]},
                "temperature": {"type": "number"},
                "humidity": {"type": "number"},
                "timestamp": {"type": "string", "format": "date-time"},
                "lastPumpCommandTime": {"type": "integer"},
                "pumpCooldownSeconds": {"type": "integer"},
                "automationEnabled": {"type": "boolean"}
            }
        },
        "models.WeatherSnapshot": {
            "type": "object",
            "properties": {
                "temperature": {"type": "number"},
                "description": {"type": "string"},
                "icon": {"type": "string"},
                "city": {"type": "string"},
                "humidity": {"type": "number"},
                "wind_speed": {"type": "number"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "models.PumpEvent": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "occurred_at": {"type": "string", "format": "date-time"},
                "action": {"type": "string"},
                "accepted": {"type": "boolean"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Smart Irrigation Simulator API",
	Description:      "Reference backend with a simulated soil sensor, pump and weather feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
