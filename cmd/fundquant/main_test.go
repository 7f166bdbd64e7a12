package main

import (
	"errors"
	"testing"

	"fundquant/internal/domain"
	"fundquant/internal/strategy"
)

func TestParseDataset(t *testing.T) {
	for _, s := range []string{"lof", "stock"} {
		ds, err := parseDataset(s)
		if err != nil || string(ds) != s {
			t.Errorf("parseDataset(%q) = %q, %v", s, ds, err)
		}
	}
	if _, err := parseDataset("bond"); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("parseDataset(bond) err = %v, want ErrInvalidParameter", err)
	}
}

func TestAnalyzeRequest(t *testing.T) {
	analyzeDays, analyzeDataset, analyzeStrategies = 60, "lof", []string{"rsi", "ma"}
	t.Cleanup(func() { analyzeDays, analyzeDataset, analyzeStrategies = 0, "", nil })

	req, err := analyzeRequest("161226")
	if err != nil {
		t.Fatalf("analyzeRequest: %v", err)
	}
	if req.Code != "161226" || req.LookbackDays != 60 || req.Dataset != domain.DatasetLOF {
		t.Errorf("req = %+v", req)
	}
	want := []strategy.Kind{strategy.KindRSIThreshold, strategy.KindMACross}
	if len(req.Strategies) != 2 || req.Strategies[0] != want[0] || req.Strategies[1] != want[1] {
		t.Errorf("Strategies = %v, want %v", req.Strategies, want)
	}

	analyzeStrategies = []string{"momentum"}
	if _, err := analyzeRequest("161226"); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("unknown strategy err = %v, want ErrInvalidParameter", err)
	}
}

func TestCacheClearNeedsServer(t *testing.T) {
	serverURL = ""
	if err := runCacheClear(cacheClearCmd, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("runCacheClear err = %v, want ErrInvalidParameter", err)
	}
}
