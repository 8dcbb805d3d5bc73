package bigtool

import "testing"

func TestPickerSelectsBestAvailableByPriority(t *testing.T) {
	p := NewPicker()
	sel := p.Select("ocr", nil)
	if !sel.Success {
		t.Fatalf("expected success, got %+v", sel)
	}
	if sel.SelectedTool != "google_vision" {
		t.Fatalf("expected highest-priority available tool, got %v", sel.SelectedTool)
	}
}

func TestPickerSkipsUnavailableTools(t *testing.T) {
	p := NewPicker()
	sel := p.Select("erp_connector", nil)
	// sap_sandbox and netsuite are unavailable by default; mock_erp is the
	// only survivor even though it has the lowest priority of the three.
	if sel.SelectedTool != "mock_erp" {
		t.Fatalf("expected fallback to mock_erp, got %v", sel.SelectedTool)
	}
}

func TestPickerReturnsFailureWhenPoolFullyUnavailable(t *testing.T) {
	p := NewPicker()
	p.SetAvailability("google_vision", false)
	p.SetAvailability("aws_textract", false)
	p.SetAvailability("tesseract", false)

	sel := p.Select("ocr", nil)
	if sel.Success {
		t.Fatalf("expected failure when every candidate is unavailable, got %+v", sel)
	}
	if sel.Reason != "no_available_tools" {
		t.Fatalf("expected no_available_tools reason, got %v", sel.Reason)
	}
}

func TestPickerUnknownCapabilityReturnsNoPoolFound(t *testing.T) {
	p := NewPicker()
	sel := p.Select("nonexistent", nil)
	if sel.Success {
		t.Fatal("expected failure for an unknown capability")
	}
	if sel.Reason != "no_pool_found" {
		t.Fatalf("expected no_pool_found reason, got %v", sel.Reason)
	}
}

func TestPickerPoolHintNarrowsCandidates(t *testing.T) {
	p := NewPicker()
	sel := p.Select("ocr", []string{"tesseract"})
	if !sel.Success || sel.SelectedTool != "tesseract" {
		t.Fatalf("expected the hinted tool to be selected, got %+v", sel)
	}
}

func TestPickerSetAvailabilityRecoversAnOutage(t *testing.T) {
	p := NewPicker()
	p.SetAvailability("google_vision", false)
	p.SetAvailability("aws_textract", false)
	sel := p.Select("ocr", nil)
	if sel.SelectedTool != "tesseract" {
		t.Fatalf("expected fallback to tesseract, got %v", sel.SelectedTool)
	}

	p.SetAvailability("google_vision", true)
	sel = p.Select("ocr", nil)
	if sel.SelectedTool != "google_vision" {
		t.Fatalf("expected recovery to restore google_vision as top priority, got %v", sel.SelectedTool)
	}
}
