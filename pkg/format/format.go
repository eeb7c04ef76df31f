// Package format renders synthesis results for a terminal. Absent reply
// fields are defaulted here and only here.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/kokoroctl/pkg/configutil"
	"github.com/harunnryd/kokoroctl/pkg/synth"
)

// Raw writes the reply exactly as decoded, indented, with sorted keys.
func Raw(w io.Writer, res *synth.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Raw); err != nil {
		return fmt.Errorf("encode raw result: %w", err)
	}
	return nil
}

// Pretty writes a human-readable summary of the reply.
func Pretty(w io.Writer, res *synth.Result) error {
	var b strings.Builder
	b.WriteString("\n=== TTS Response ===\n")

	if res.Succeeded() {
		b.WriteString("✅ Success: Audio generated successfully\n")
		fmt.Fprintf(&b, "📁 Filename: %s\n", text(res, "filename", res.Filename, "Unknown"))
		fmt.Fprintf(&b, "📊 File size: %d bytes\n", configutil.Int64Value(res.FileSize, 0))
		if res.Path != nil {
			fmt.Fprintf(&b, "📂 Server path: %s\n", *res.Path)
		}

		switch res.Upload() {
		case synth.UploadSucceeded:
			b.WriteString("☁️ S3 Upload: Success\n")
			fmt.Fprintf(&b, "🔗 S3 URL: %s\n", text(res, "s3_url", res.S3URL, "Not available"))
			if res.LocalKept != nil {
				fmt.Fprintf(&b, "💾 Local copy kept: %s\n", yesNo(*res.LocalKept))
			}
		case synth.UploadFailed:
			b.WriteString("☁️ S3 Upload: Failed\n")
			fmt.Fprintf(&b, "❌ Error: %s\n", text(res, "s3_error", res.S3Error, "Unknown error"))
		default:
			b.WriteString("☁️ S3 Upload: Not requested\n")
		}
	} else {
		b.WriteString("❌ Error: TTS generation failed\n")
		fmt.Fprintf(&b, "Error message: %s\n", res.ErrorMessage())
	}

	b.WriteString("=====================\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// text prefers the typed value, then whatever the server sent under key,
// then fallback.
func text(res *synth.Result, key string, typed *string, fallback string) string {
	if typed != nil {
		return *typed
	}
	if res.Has(key) && res.Raw[key] != nil {
		return fmt.Sprint(res.Raw[key])
	}
	return fallback
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
