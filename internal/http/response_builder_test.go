package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusAccepted).
		Header("X-Test", "1").
		BodyHTML("<p>ok</p>").
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerBalanceRecorded("A1", "2024-05").
		TriggerAccountCreated("A1").
		TriggerFormReset().
		TriggerSuccessNotification("Saved").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	for _, part := range []string{
		`"balance:recorded"`,
		`"period":"2024-05"`,
		`"account:created"`,
		`"form:reset"`,
		`"show-notification"`,
		`"type":"success"`,
		`"duration":3000`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestErrorResponseEscapes(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, `<script>alert("x")</script>`).
		TriggerErrorNotification("bad").
		Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.HasPrefix(body, `<div class="error">`) {
		t.Errorf("unexpected body: %s", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Error("error notification missing")
	}
}

func TestSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()
	SuccessResponse(http.StatusCreated, "Account A1 added").Write(w)
	if w.Code != http.StatusCreated || w.Body.String() != `<div class="success">Account A1 added</div>` {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
