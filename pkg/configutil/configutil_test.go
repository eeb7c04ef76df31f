package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettingsFlagsUnknownNestedKeys(t *testing.T) {
	input := map[string]any{
		"host": "localhost",
		"metrics": map[string]any{
			"jsonl_path": "/tmp/m.jsonl",
			"jsonl_pth":  "typo",
		},
	}
	err := ValidateSettings(input, Schema{
		Required: []string{"host"},
		Optional: []string{"metrics.jsonl_path"},
	})
	if err == nil {
		t.Fatalf("expected unknown key error")
	}
	if !strings.Contains(err.Error(), "unknown: metrics.jsonl_pth") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSettingsMissingRequired(t *testing.T) {
	err := ValidateSettings(map[string]any{"voice": "  "}, Schema{
		Required: []string{"voice", "host"},
	})
	if err == nil || err.Error() != "missing: host, voice" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	err := ValidateSettings(map[string]any{"Connect-Timeout": "5s"}, Schema{
		Optional: []string{"connect_timeout"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeSettingsKeepsAbsentPointersNil(t *testing.T) {
	var out struct {
		Success  *bool   `mapstructure:"success"`
		FileSize *int64  `mapstructure:"file_size"`
		S3URL    *string `mapstructure:"s3_url"`
	}
	if err := DecodeSettings(map[string]any{"success": true, "FILE-SIZE": 12}, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Success == nil || !*out.Success {
		t.Fatalf("expected success=true")
	}
	if out.FileSize == nil || *out.FileSize != 12 {
		t.Fatalf("expected file size 12")
	}
	if out.S3URL != nil {
		t.Fatalf("expected absent s3_url to stay nil")
	}
}

func TestValueFallbacks(t *testing.T) {
	if BoolValue(nil, true) != true {
		t.Fatalf("bool fallback")
	}
	s := "x"
	if StringValue(&s, "y") != "x" || StringValue(nil, "y") != "y" {
		t.Fatalf("string fallback")
	}
	if Int64Value(nil, 7) != 7 {
		t.Fatalf("int64 fallback")
	}
	if err := RequireString(" ", "host"); err == nil || err.Error() != "host is required" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeSettingsSkipsIgnoredFields(t *testing.T) {
	type reply struct {
		Name  *string        `mapstructure:"name"`
		Extra map[string]any `mapstructure:"-"`
	}
	out := reply{Extra: map[string]any{"kept": true}}
	if err := DecodeSettings(map[string]any{"_": "x", "name": "a"}, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name == nil || *out.Name != "a" {
		t.Fatalf("name = %v", out.Name)
	}
	if len(out.Extra) != 1 {
		t.Fatalf("ignored field was overwritten: %v", out.Extra)
	}
}
