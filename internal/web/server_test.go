package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"refclockd/internal/driver"
	"refclockd/internal/pps"
)

type fakeController struct {
	snap     driver.Snapshot
	reconfig []pps.EdgeKind
	err      error
}

func (c *fakeController) Snapshot() driver.Snapshot { return c.snap }

func (c *fakeController) Reconfigure(edge pps.EdgeKind, kernelDiscipline bool) error {
	c.reconfig = append(c.reconfig, edge)
	return c.err
}

func TestHandler_StatusReturnsSnapshot(t *testing.T) {
	ctl := &fakeController{snap: driver.Snapshot{Device: "/dev/gps0", Edge: "assert", WeekKnown: true, GPSWeek: 2000}}
	srv := httptest.NewServer(Handler(ctl))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}

	var view struct {
		Service string          `json:"service"`
		Driver  driver.Snapshot `json:"driver"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if view.Service != "refclockd" {
		t.Fatalf("service=%q want refclockd", view.Service)
	}
	if !view.Driver.WeekKnown || view.Driver.GPSWeek != 2000 {
		t.Fatalf("driver snapshot=%+v want week 2000", view.Driver)
	}
}

func TestHandler_StatusRejectsPost(t *testing.T) {
	srv := httptest.NewServer(Handler(&fakeController{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want 405", resp.StatusCode)
	}
}

func TestHandler_ReconfigureParsesEdge(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(Handler(ctl))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/reconfigure", "application/json",
		strings.NewReader(`{"edge":"clear"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	if len(ctl.reconfig) != 1 || ctl.reconfig[0] != pps.EdgeClear {
		t.Fatalf("reconfig=%v want [clear]", ctl.reconfig)
	}
}

func TestHandler_ReconfigureRejectsBadEdge(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(Handler(ctl))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/reconfigure", "application/json",
		strings.NewReader(`{"edge":"sideways"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
	if len(ctl.reconfig) != 0 {
		t.Fatalf("controller called with a bad edge")
	}
}
