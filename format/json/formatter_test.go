package json_test

import (
	"encoding/json"
	"strings"
	"testing"

	jsonformat "github.com/halyard-io/telemetryd/format/json"
	"github.com/halyard-io/telemetryd/payload"
)

// fixtureSubmission builds an active two-reading submission.
func fixtureSubmission(t *testing.T) *payload.Submission {
	t.Helper()

	in := payload.NewReading("netif.bytes.in", "1000", payload.TypeCount64)
	in.Annotate(payload.NewMetaPair("interface", "eth0"))
	release := payload.NewReading("os.release", "Linux 6.8", payload.TypeString)

	set := payload.NewDeviceReadingSet("sw01")
	set.Add(in, release)

	gw := payload.NewGatewaySet("rack1-gw")
	gw.Add(set)

	sub := payload.NewSubmission("id01", "telemetryd", "host01", 300)
	sub.Add(gw)
	if !sub.Active() {
		t.Fatal("fixture submission should be active")
	}
	return sub
}

func TestFormat_DocumentShape(t *testing.T) {
	f := jsonformat.New(jsonformat.Config{}, nil)
	data, err := f.Format(fixtureSubmission(t))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc["agent_id"] != "id01" || doc["agent_program"] != "telemetryd" || doc["agent_hostname"] != "host01" {
		t.Errorf("identity fields wrong: %v", doc)
	}
	if doc["polling_interval"] != float64(300) {
		t.Errorf("polling_interval = %v, want 300", doc["polling_interval"])
	}

	gateways, ok := doc["gateways"].([]interface{})
	if !ok || len(gateways) != 1 {
		t.Fatalf("gateways = %v, want one entry", doc["gateways"])
	}
	gw := gateways[0].(map[string]interface{})
	if gw["gateway"] != "rack1-gw" {
		t.Errorf("gateway = %v", gw["gateway"])
	}

	devices := gw["devices"].([]interface{})
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}
	dev := devices[0].(map[string]interface{})
	if dev["device"] != "sw01" {
		t.Errorf("device = %v", dev["device"])
	}

	readings := dev["readings"].([]interface{})
	if len(readings) != 2 {
		t.Fatalf("readings = %d, want 2", len(readings))
	}

	first := readings[0].(map[string]interface{})
	if first["key"] != "netif.bytes.in" {
		t.Errorf("reading key = %v", first["key"])
	}
	if first["data_type"] != float64(payload.TypeCount64) {
		t.Errorf("data_type = %v, want %d", first["data_type"], payload.TypeCount64)
	}
	if first["value"] != float64(1000) {
		t.Errorf("value = %v, want 1000", first["value"])
	}
	if first["checksum"] == "" || first["checksum"] == nil {
		t.Error("checksum missing from reading document")
	}
	meta := first["metadata"].(map[string]interface{})
	if meta["interface"] != "eth0" {
		t.Errorf("metadata = %v", meta)
	}

	second := readings[1].(map[string]interface{})
	if _, present := second["metadata"]; present {
		t.Error("empty metadata should be omitted")
	}
	if second["value"] != "Linux 6.8" {
		t.Errorf("string value = %v, want verbatim", second["value"])
	}
}

func TestFormat_PrettyPrint(t *testing.T) {
	f := jsonformat.New(jsonformat.Config{PrettyPrint: true}, nil)
	data, err := f.Format(fixtureSubmission(t))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Error("pretty output should be indented")
	}
}

func TestFormat_NilSubmission(t *testing.T) {
	f := jsonformat.New(jsonformat.Config{}, nil)
	if _, err := f.Format(nil); err == nil {
		t.Error("nil submission should error")
	}
}

func TestFormat_InactiveSubmissionStillSerialises(t *testing.T) {
	// Active() gating belongs to the engine; the formatter serialises any tree.
	sub := payload.NewSubmission("", "", "", 0)
	f := jsonformat.New(jsonformat.Config{}, nil)
	data, err := f.Format(sub)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gws, ok := doc["gateways"].([]interface{}); !ok || len(gws) != 0 {
		t.Errorf("gateways = %v, want empty array", doc["gateways"])
	}
}
