package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testAPI(t *testing.T) (*APIService, *Services) {
	t.Helper()

	svc, err := NewServices(testConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)

	if err := svc.replayConfig(); err != nil {
		t.Fatal(err)
	}
	return svc.API, svc
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}
	var root map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &root); err != nil {
		t.Fatalf("Response is not JSON: %v", err)
	}
	return root
}

func TestStateDocumentIncludesSensorFragment(t *testing.T) {
	api, _ := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleState(rec, httptest.NewRequest(http.MethodGet, "/json/state", nil))

	root := decodeResponse(t, rec)
	if root["on"].(bool) {
		t.Error("Lights should start off")
	}
	if _, ok := root["sensors"].(map[string]any); !ok {
		t.Error("State document should carry the sensors fragment")
	}
}

func TestPostStateSetsManualFlag(t *testing.T) {
	api, svc := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleState(rec, httptest.NewRequest(http.MethodPost, "/json/state",
		strings.NewReader(`{"on":true}`)))
	decodeResponse(t, rec)

	if svc.Lights.Brightness() == 0 {
		t.Error("on=true should restore brightness")
	}

	rec = httptest.NewRecorder()
	api.handleState(rec, httptest.NewRequest(http.MethodGet, "/json/state", nil))
	root := decodeResponse(t, rec)
	sensorsObj := root["sensors"].(map[string]any)
	if !sensorsObj["lastOnManual"].(bool) {
		t.Error("A client-initiated on must mark the manual flag")
	}
}

func TestPostStateBrightnessWinsOverOn(t *testing.T) {
	api, svc := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleState(rec, httptest.NewRequest(http.MethodPost, "/json/state",
		strings.NewReader(`{"on":false,"bri":70}`)))
	decodeResponse(t, rec)

	if svc.Lights.Brightness() != 70 {
		t.Errorf("Brightness = %d, want 70", svc.Lights.Brightness())
	}
}

func TestPostStateRejectsBadJSON(t *testing.T) {
	api, _ := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleState(rec, httptest.NewRequest(http.MethodPost, "/json/state",
		strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestInfoDocumentCarriesDiagnostics(t *testing.T) {
	api, _ := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleInfo(rec, httptest.NewRequest(http.MethodGet, "/json/info", nil))

	root := decodeResponse(t, rec)
	u, ok := root["u"].(map[string]any)
	if !ok {
		t.Fatal("Info document should carry the u object")
	}
	if _, ok := u["LDR resistance"]; !ok {
		t.Error("Expected an LDR resistance entry")
	}
	if _, ok := u["PIR triggered"]; !ok {
		t.Error("Expected a PIR triggered entry")
	}
}

func TestPostConfigUpdatesAndPersists(t *testing.T) {
	api, svc := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleConfig(rec, httptest.NewRequest(http.MethodPost, "/json/cfg",
		strings.NewReader(`{"sensors":{"pirPins":"7","ldrThreshold":800}}`)))
	decodeResponse(t, rec)

	if svc.Sensors.Config().LDRThreshold != 800 {
		t.Errorf("LDR threshold = %d, want 800", svc.Sensors.Config().LDRThreshold)
	}

	// The rewritten document is persisted immediately.
	payload, _, err := svc.Store.Get("usermod_config", configDocID)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatal(err)
	}
	sensorsObj := doc["sensors"].(map[string]any)
	if sensorsObj["pirPins"].(string) != "7" {
		t.Errorf("Persisted pirPins = %v, want \"7\"", sensorsObj["pirPins"])
	}
}

func TestConfigGetServesCurrentSettings(t *testing.T) {
	api, _ := testAPI(t)

	rec := httptest.NewRecorder()
	api.handleConfig(rec, httptest.NewRequest(http.MethodGet, "/json/cfg", nil))

	root := decodeResponse(t, rec)
	sensorsObj, ok := root["sensors"].(map[string]any)
	if !ok {
		t.Fatal("Config document should carry the sensors object")
	}
	if sensorsObj["pirPins"].(string) != "13" {
		t.Errorf("pirPins = %v, want \"13\"", sensorsObj["pirPins"])
	}
}
