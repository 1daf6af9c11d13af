// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package validation

import (
	"strings"
	"testing"
)

type tileRequest struct {
	Format      string  `validate:"omitempty,tile_format"`
	ScaleFactor float64 `validate:"omitempty,gte=1,lte=8"`
	Zoom        int     `validate:"min=0,max=30"`
}

func TestValidateStructPasses(t *testing.T) {
	req := tileRequest{Format: "png", ScaleFactor: 2, Zoom: 12}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructEmptyOptionalFields(t *testing.T) {
	if err := ValidateStruct(&tileRequest{Zoom: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructTileFormat(t *testing.T) {
	for _, format := range []string{"png", "png32", "mvt", "grid.json"} {
		if err := ValidateStruct(&tileRequest{Format: format}); err != nil {
			t.Errorf("format %q rejected: %v", format, err)
		}
	}
	err := ValidateStruct(&tileRequest{Format: "jpeg"})
	if err == nil {
		t.Fatal("format jpeg accepted, want rejection")
	}
	if !strings.Contains(err.Error(), "tile format") {
		t.Errorf("error %q does not mention tile format", err)
	}
}

func TestValidateStructCollectsAllFailures(t *testing.T) {
	err := ValidateStruct(&tileRequest{Format: "bmp", ScaleFactor: 99, Zoom: -1})
	if err == nil {
		t.Fatal("expected error")
	}
	verrs, ok := err.(*Errors)
	if !ok {
		t.Fatalf("error type %T, want *Errors", err)
	}
	if len(verrs.Fields) != 3 {
		t.Fatalf("got %d field errors, want 3: %v", len(verrs.Fields), verrs)
	}
}
