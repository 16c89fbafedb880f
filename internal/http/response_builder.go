package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HTMXResponseBuilder assembles an HTML fragment response together with its
// HX-Trigger events.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerAccountCreated tells account pickers to reload.
func (b *HTMXResponseBuilder) TriggerAccountCreated(number string) *HTMXResponseBuilder {
	return b.Trigger("account:created", map[string]string{"account": number})
}

// TriggerBalanceRecorded tells tables and charts to refresh.
func (b *HTMXResponseBuilder) TriggerBalanceRecorded(account, period string) *HTMXResponseBuilder {
	return b.Trigger("balance:recorded", map[string]string{"account": account, "period": period})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets an already-escaped HTML body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Message sets a status line body; the message is escaped.
func (b *HTMXResponseBuilder) Message(class, message string) *HTMXResponseBuilder {
	return b.BodyHTML(`<div class="` + class + `">` + template.HTMLEscapeString(message) + `</div>`)
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// SuccessResponse renders a success line.
func SuccessResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().Status(statusCode).Message("success", message)
}

// ErrorResponse renders an error line.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().Status(statusCode).Message("error", message)
}
